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

// TemplateRepository handles template metadata persistence.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs the repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create stores metadata for an uploaded template file.
func (r *TemplateRepository) Create(ctx context.Context, tpl *models.Template) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now

	const query = `INSERT INTO templates
	(id, owner_id, name, description, template_type, file_path, placeholders, created_at, updated_at)
	VALUES (:id, :owner_id, :name, :description, :template_type, :file_path, :placeholders, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// GetByID retrieves one template row.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	const query = `SELECT id, owner_id, name, description, template_type, file_path, placeholders, created_at, updated_at
	FROM templates WHERE id = $1 LIMIT 1`
	var tpl models.Template
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &tpl, nil
}

// ListByOwner returns an owner's templates, newest first.
func (r *TemplateRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Template, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT id, owner_id, name, description, template_type, file_path, placeholders, created_at, updated_at
	FROM templates WHERE owner_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)
	var records []models.Template
	if err := r.db.SelectContext(ctx, &records, query, ownerID); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return records, nil
}

// Update applies the provided metadata changes. Only non-nil fields are
// written.
func (r *TemplateRepository) Update(ctx context.Context, id string, name, description *string) error {
	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	args = append(args, id)

	if name != nil {
		args = append(args, *name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if description != nil {
		args = append(args, *description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))

	query := fmt.Sprintf("UPDATE templates SET %s WHERE id = $1", strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check template update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a template row.
func (r *TemplateRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM templates WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check template delete rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByOwner returns the number of templates an owner has.
func (r *TemplateRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM templates WHERE owner_id = $1`
	var total int64
	if err := r.db.GetContext(ctx, &total, query, ownerID); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return total, nil
}
