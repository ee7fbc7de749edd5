package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sameerreddy213/certmaker-api/internal/dto"
	"github.com/sameerreddy213/certmaker-api/internal/models"
	"github.com/sameerreddy213/certmaker-api/pkg/docx"
	appErrors "github.com/sameerreddy213/certmaker-api/pkg/errors"
)

type templateStore interface {
	Create(ctx context.Context, tpl *models.Template) error
	GetByID(ctx context.Context, id string) (*models.Template, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]models.Template, error)
	Update(ctx context.Context, id string, name, description *string) error
	Delete(ctx context.Context, id string) error
}

type fileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	Path(filename string) string
}

// TemplateUpload carries upload metadata and the stream reader.
type TemplateUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// TemplateServiceConfig holds validation parameters for uploads.
type TemplateServiceConfig struct {
	MaxFileSize int64
}

// TemplateService manages certificate template metadata and files.
type TemplateService struct {
	repo    templateStore
	storage fileStorage
	logger  *zap.Logger
	cfg     TemplateServiceConfig
}

// NewTemplateService constructs the service with defaults.
func NewTemplateService(repo templateStore, storage fileStorage, logger *zap.Logger, cfg TemplateServiceConfig) *TemplateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 20 * 1024 * 1024
	}
	return &TemplateService{repo: repo, storage: storage, logger: logger, cfg: cfg}
}

// Upload stores the template file, extracts its placeholders and persists
// the metadata.
func (s *TemplateService) Upload(ctx context.Context, meta dto.CreateTemplateRequest, upload TemplateUpload, actor *models.JWTClaims) (*models.Template, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(meta.Name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}

	tplType, err := templateTypeFromFilename(upload.Filename)
	if err != nil {
		return nil, err
	}
	placeholders, err := parsePlaceholders(meta.Placeholders)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("template_%s%s", uuid.NewString(), strings.ToLower(filepath.Ext(upload.Filename)))
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if _, err := s.storage.SaveStream(filename, upload.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist template file")
	}
	path := s.storage.Path(filename)

	if err := docx.CheckTokens(path); err != nil {
		_ = s.storage.Delete(filename)
		if docx.IsTemplateError(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "template contains malformed placeholders")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is not a readable document")
	}

	tpl := &models.Template{
		OwnerID:      actor.UserID,
		Name:         strings.TrimSpace(meta.Name),
		Description:  strings.TrimSpace(meta.Description),
		TemplateType: tplType,
		FilePath:     path,
		Placeholders: placeholders,
	}
	if err := s.repo.Create(ctx, tpl); err != nil {
		_ = s.storage.Delete(filename)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template metadata")
	}

	s.logger.Sugar().Infow("template uploaded",
		"templateId", tpl.ID, "ownerId", tpl.OwnerID, "type", tpl.TemplateType, "placeholders", len(placeholders))
	return tpl, nil
}

// Get returns template metadata enforcing ownership.
func (s *TemplateService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Template, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	tpl, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if tpl.OwnerID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "template belongs to another user")
	}
	return tpl, nil
}

// List returns the actor's templates.
func (s *TemplateService) List(ctx context.Context, actor *models.JWTClaims, limit, offset int) ([]models.Template, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	templates, err := s.repo.ListByOwner(ctx, actor.UserID, limit, offset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// Update applies metadata changes to an owned template.
func (s *TemplateService) Update(ctx context.Context, id string, req dto.UpdateTemplateRequest, actor *models.JWTClaims) (*models.Template, error) {
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name cannot be empty")
	}
	if err := s.repo.Update(ctx, id, req.Name, req.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update template")
	}
	return s.Get(ctx, id, actor)
}

// Delete removes an owned template and its file.
func (s *TemplateService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	tpl, err := s.Get(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	if err := s.storage.Delete(filepath.Base(tpl.FilePath)); err != nil {
		s.logger.Sugar().Warnw("failed to remove template file", "templateId", id, "error", err)
	}
	return nil
}

// parsePlaceholders decodes the user-declared placeholder list. Order
// and duplicates are preserved as declared; the document itself is never
// scanned for tokens.
func parsePlaceholders(raw string) (models.StringList, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "placeholders is required")
	}
	var declared []string
	if err := json.Unmarshal([]byte(raw), &declared); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "placeholders must be a JSON array of names")
	}
	names := make(models.StringList, 0, len(declared))
	for _, name := range declared {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "placeholder names cannot be empty")
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one placeholder is required")
	}
	return names, nil
}

func templateTypeFromFilename(filename string) (models.TemplateType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		return models.TemplateTypeDocx, nil
	case ".pptx":
		return models.TemplateTypePptx, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "only .docx and .pptx templates are supported")
	}
}
