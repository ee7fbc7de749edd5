package dto

import "github.com/sameerreddy213/certmaker-api/internal/models"

// CreateTemplateRequest contains metadata submitted alongside a template
// upload. Placeholders is a JSON array of the token names the user put in
// the document; the system trusts the declaration instead of parsing the
// document structure.
type CreateTemplateRequest struct {
	Name         string `form:"name" json:"name"`
	Description  string `form:"description" json:"description"`
	Placeholders string `form:"placeholders" json:"placeholders"`
}

// UpdateTemplateRequest carries optional metadata changes.
type UpdateTemplateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// TemplateResponse is the template metadata returned to clients.
type TemplateResponse struct {
	models.Template
	PlaceholderCount int `json:"placeholder_count"`
}

// NewTemplateResponse wraps a model with derived fields.
func NewTemplateResponse(t models.Template) TemplateResponse {
	return TemplateResponse{Template: t, PlaceholderCount: len(t.Placeholders)}
}
