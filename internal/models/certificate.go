package models

import "time"

type CertificateStatus string

const (
	CertificateStatusPending   CertificateStatus = "pending"
	CertificateStatusGenerated CertificateStatus = "generated"
	CertificateStatusFailed    CertificateStatus = "failed"
)

// Certificate is the per-row outcome of a batch. Exactly one record
// exists per input row, written once after the row is attempted; the
// full source row is retained in RowData for traceability.
type Certificate struct {
	ID            string            `db:"id" json:"id"`
	OwnerID       string            `db:"owner_id" json:"owner_id"`
	BatchID       string            `db:"batch_id" json:"batch_id"`
	RecipientName string            `db:"recipient_name" json:"recipient_name"`
	RowData       JSONMap           `db:"row_data" json:"row_data"`
	Status        CertificateStatus `db:"status" json:"status"`
	FilePath      *string           `db:"file_path" json:"-"`
	ErrorMessage  *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
}
