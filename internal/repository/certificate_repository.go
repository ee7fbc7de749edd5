package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sameerreddy213/certmaker-api/internal/models"
)

// CertificateRepository persists per-row generation outcomes.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create records the outcome of one data row.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO certificates
	(id, owner_id, batch_id, recipient_name, row_data, status, file_path, error_message, created_at)
	VALUES (:id, :owner_id, :batch_id, :recipient_name, :row_data, :status, :file_path, :error_message, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// GetByID retrieves one certificate row.
func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*models.Certificate, error) {
	const query = `SELECT id, owner_id, batch_id, recipient_name, row_data, status, file_path, error_message, created_at
	FROM certificates WHERE id = $1 LIMIT 1`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return &cert, nil
}

// ListByBatch returns every certificate of a batch in insertion order.
func (r *CertificateRepository) ListByBatch(ctx context.Context, batchID string) ([]models.Certificate, error) {
	const query = `SELECT id, owner_id, batch_id, recipient_name, row_data, status, file_path, error_message, created_at
	FROM certificates WHERE batch_id = $1 ORDER BY created_at ASC, id ASC`
	var records []models.Certificate
	if err := r.db.SelectContext(ctx, &records, query, batchID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return records, nil
}

// CountByOwnerAndStatus returns how many certificates an owner has in the
// given status.
func (r *CertificateRepository) CountByOwnerAndStatus(ctx context.Context, ownerID string, status models.CertificateStatus) (int64, error) {
	const query = `SELECT COUNT(*) FROM certificates WHERE owner_id = $1 AND status = $2`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, ownerID, status); err != nil {
		return 0, fmt.Errorf("count certificates: %w", err)
	}
	return total, nil
}

// CountGeneratedPerDay returns per-day generated totals for the trailing
// window, oldest first. Days without activity are absent from the result.
func (r *CertificateRepository) CountGeneratedPerDay(ctx context.Context, ownerID string, days int) ([]models.DailyCount, error) {
	if days <= 0 {
		days = 7
	}
	const query = `SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD') AS day, COUNT(*) AS generated
	FROM certificates
	WHERE owner_id = $1 AND status = $2 AND created_at >= NOW() - ($3 * INTERVAL '1 day')
	GROUP BY 1 ORDER BY 1 ASC`
	var counts []models.DailyCount
	if err := r.db.SelectContext(ctx, &counts, query, ownerID, models.CertificateStatusGenerated, days); err != nil {
		return nil, fmt.Errorf("count daily certificates: %w", err)
	}
	return counts, nil
}
