package models

import "time"

// BatchStatus captures the generation run lifecycle. Transitions only
// move forward: pending → processing → completed or failed.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

// Batch is one generation run of a dataset against a template.
// ProcessedCount advances for every attempted row; GeneratedCount only
// for successes. ProcessedCount never exceeds TotalCount. TemplateID is
// empty when the template has since been deleted.
type Batch struct {
	ID             string      `db:"id" json:"id"`
	OwnerID        string      `db:"owner_id" json:"owner_id"`
	TemplateID     string      `db:"template_id" json:"template_id"`
	Name           string      `db:"name" json:"name"`
	Status         BatchStatus `db:"status" json:"status"`
	TotalCount     int         `db:"total_count" json:"total_count"`
	ProcessedCount int         `db:"processed_count" json:"processed_count"`
	GeneratedCount int         `db:"generated_count" json:"generated_count"`
	Mappings       JSONMap     `db:"mappings" json:"mappings"`
	ArchivePath    *string     `db:"archive_path" json:"-"`
	ErrorMessage   *string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// Terminal reports whether the batch has reached a final state.
func (b *Batch) Terminal() bool {
	return b.Status == BatchStatusCompleted || b.Status == BatchStatusFailed
}
