package dto

import "github.com/sameerreddy213/certmaker-api/internal/models"

// GenerateBatchRequest is the multipart form accompanying a data upload.
// Mappings arrives as a JSON object string mapping column header to
// placeholder name.
type GenerateBatchRequest struct {
	TemplateID string `form:"template_id" json:"template_id"`
	Name       string `form:"name" json:"name"`
	Mappings   string `form:"mappings" json:"mappings"`
}

// BatchAcceptedResponse acknowledges that generation was queued.
type BatchAcceptedResponse struct {
	BatchID    string             `json:"batch_id"`
	Status     models.BatchStatus `json:"status"`
	TotalCount int                `json:"total_count"`
}

// BatchStatusResponse is the lightweight polling payload.
type BatchStatusResponse struct {
	ID             string             `json:"id"`
	Status         models.BatchStatus `json:"status"`
	TotalCount     int                `json:"total_count"`
	ProcessedCount int                `json:"processed_count"`
	GeneratedCount int                `json:"generated_count"`
	ErrorMessage   *string            `json:"error_message,omitempty"`
}

// BatchDetailsResponse combines the batch with its per-row outcomes.
// ArchiveReady tells the client the download-zip route will serve a file.
type BatchDetailsResponse struct {
	Batch        models.Batch         `json:"batch"`
	Certificates []models.Certificate `json:"certificates"`
	ArchiveReady bool                 `json:"archive_ready"`
}

// BatchFilter captures list query parameters.
type BatchFilter struct {
	Status string
	Limit  int
	Offset int
}
