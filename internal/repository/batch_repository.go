package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sameerreddy213/certmaker-api/internal/models"
)

// BatchRepository persists generation runs and their progress counters.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository constructs the repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create inserts a new batch in pending state.
func (r *BatchRepository) Create(ctx context.Context, batch *models.Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	batch.UpdatedAt = now
	if batch.Status == "" {
		batch.Status = models.BatchStatusPending
	}

	const query = `INSERT INTO batches
	(id, owner_id, template_id, name, status, total_count, processed_count, generated_count, mappings, archive_path, error_message, created_at, updated_at)
	VALUES (:id, :owner_id, :template_id, :name, :status, :total_count, :processed_count, :generated_count, :mappings, :archive_path, :error_message, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}
	return nil
}

// GetByID retrieves one batch row. Deleting a template nulls the
// reference on its batches, which reads back as an empty TemplateID.
func (r *BatchRepository) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	const query = `SELECT id, owner_id, COALESCE(template_id, '') AS template_id, name, status, total_count, processed_count, generated_count,
       mappings, archive_path, error_message, created_at, updated_at
	FROM batches WHERE id = $1 LIMIT 1`
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return &batch, nil
}

// ListByOwner returns an owner's batches, optionally filtered by status,
// newest first.
func (r *BatchRepository) ListByOwner(ctx context.Context, ownerID, status string, limit, offset int) ([]models.Batch, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT id, owner_id, COALESCE(template_id, '') AS template_id, name, status, total_count, processed_count, generated_count,
       mappings, archive_path, error_message, created_at, updated_at FROM batches WHERE owner_id = $1`)
	args := []interface{}{ownerID}

	if status != "" {
		args = append(args, status)
		builder.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var records []models.Batch
	if err := r.db.SelectContext(ctx, &records, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return records, nil
}

// MarkProcessing transitions a pending batch into processing. The status
// guard keeps the transition forward-only.
func (r *BatchRepository) MarkProcessing(ctx context.Context, id string) error {
	const query = `UPDATE batches SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.BatchStatusProcessing, time.Now().UTC(), models.BatchStatusPending)
	if err != nil {
		return fmt.Errorf("mark batch processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check batch transition rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateProgress writes the attempted and succeeded row counters.
func (r *BatchRepository) UpdateProgress(ctx context.Context, id string, processed, generated int) error {
	const query = `UPDATE batches SET processed_count = $2, generated_count = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, processed, generated, time.Now().UTC()); err != nil {
		return fmt.Errorf("update batch progress: %w", err)
	}
	return nil
}

// MarkCompleted finalises a batch with its archive location.
func (r *BatchRepository) MarkCompleted(ctx context.Context, id, archivePath string) error {
	const query = `UPDATE batches SET status = $2, archive_path = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.BatchStatusCompleted, archivePath, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark batch completed: %w", err)
	}
	return nil
}

// MarkFailed records a run-level failure message.
func (r *BatchRepository) MarkFailed(ctx context.Context, id, message string) error {
	const query = `UPDATE batches SET status = $2, error_message = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.BatchStatusFailed, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark batch failed: %w", err)
	}
	return nil
}

// CountByOwner returns the number of batches an owner has started.
func (r *BatchRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM batches WHERE owner_id = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, ownerID); err != nil {
		return 0, fmt.Errorf("count batches: %w", err)
	}
	return total, nil
}
