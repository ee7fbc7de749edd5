package models

import "time"

// TemplateType enumerates the supported native document formats.
type TemplateType string

const (
	TemplateTypeDocx TemplateType = "docx"
	TemplateTypePptx TemplateType = "pptx"
)

// ValidTemplateType reports whether t names a supported format.
func ValidTemplateType(t TemplateType) bool {
	return t == TemplateTypeDocx || t == TemplateTypePptx
}

// Template is a user-owned document with declared placeholder tokens.
// Placeholders are user-declared at upload time; the system never infers
// them from the document structure.
type Template struct {
	ID           string       `db:"id" json:"id"`
	OwnerID      string       `db:"owner_id" json:"owner_id"`
	Name         string       `db:"name" json:"name"`
	Description  string       `db:"description" json:"description,omitempty"`
	TemplateType TemplateType `db:"template_type" json:"template_type"`
	FilePath     string       `db:"file_path" json:"-"`
	Placeholders StringList   `db:"placeholders" json:"placeholders"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}
