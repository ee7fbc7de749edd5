package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sameerreddy213/certmaker-api/internal/dto"
	"github.com/sameerreddy213/certmaker-api/internal/models"
	"github.com/sameerreddy213/certmaker-api/internal/service"
	appErrors "github.com/sameerreddy213/certmaker-api/pkg/errors"
	"github.com/sameerreddy213/certmaker-api/pkg/response"
)

type templateService interface {
	Upload(ctx context.Context, meta dto.CreateTemplateRequest, upload service.TemplateUpload, actor *models.JWTClaims) (*models.Template, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Template, error)
	List(ctx context.Context, actor *models.JWTClaims, limit, offset int) ([]models.Template, error)
	Update(ctx context.Context, id string, req dto.UpdateTemplateRequest, actor *models.JWTClaims) (*models.Template, error)
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
}

// TemplateHandler manages template HTTP endpoints.
type TemplateHandler struct {
	service templateService
}

// NewTemplateHandler constructs the handler.
func NewTemplateHandler(service templateService) *TemplateHandler {
	return &TemplateHandler{service: service}
}

// Upload godoc
// @Summary Upload a certificate template
// @Tags Templates
// @Accept multipart/form-data
// @Produce json
// @Param name formData string true "Template name"
// @Param description formData string false "Description"
// @Param placeholders formData string true "JSON array of declared placeholder names"
// @Param file formData file true "DOCX or PPTX template"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /templates [post]
func (h *TemplateHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateTemplateRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid template payload"))
		return
	}
	upload, err := readUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	tpl, err := h.service.Upload(c.Request.Context(), req, service.TemplateUpload{
		Filename: upload.filename,
		Size:     upload.size,
		Content:  upload.content,
	}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, dto.NewTemplateResponse(*tpl))
}

// List godoc
// @Summary List own templates
// @Tags Templates
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /templates [get]
func (h *TemplateHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	templates, err := h.service.List(c.Request.Context(), claims, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	result := make([]dto.TemplateResponse, 0, len(templates))
	for _, tpl := range templates {
		result = append(result, dto.NewTemplateResponse(tpl))
	}
	response.JSON(c, http.StatusOK, result)
}

// Get godoc
// @Summary Get template metadata
// @Tags Templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /templates/{id} [get]
func (h *TemplateHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	tpl, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewTemplateResponse(*tpl))
}

// Update godoc
// @Summary Update template metadata
// @Tags Templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param payload body dto.UpdateTemplateRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /templates/{id} [put]
func (h *TemplateHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpdateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid update payload"))
		return
	}
	tpl, err := h.service.Update(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewTemplateResponse(*tpl))
}

// Delete godoc
// @Summary Delete a template
// @Tags Templates
// @Param id path string true "Template ID"
// @Success 204
// @Security BearerAuth
// @Router /templates/{id} [delete]
func (h *TemplateHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

type formUpload struct {
	filename string
	size     int64
	content  io.ReadSeeker
}

// readUpload buffers one multipart file into a seekable reader. Upload
// sizes are capped by the services, so buffering is acceptable.
func readUpload(c *gin.Context, field string) (*formUpload, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, field+" is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	defer src.Close() //nolint:errcheck

	buf, err := io.ReadAll(src)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
	}
	return &formUpload{filename: fileHeader.Filename, size: fileHeader.Size, content: bytes.NewReader(buf)}, nil
}
