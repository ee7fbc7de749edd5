package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sameerreddy213/certmaker-api/internal/dto"
	"github.com/sameerreddy213/certmaker-api/internal/models"
	"github.com/sameerreddy213/certmaker-api/internal/service"
	appErrors "github.com/sameerreddy213/certmaker-api/pkg/errors"
	"github.com/sameerreddy213/certmaker-api/pkg/response"
)

type batchService interface {
	Generate(ctx context.Context, req dto.GenerateBatchRequest, upload service.DataUpload, actor *models.JWTClaims) (*dto.BatchAcceptedResponse, error)
	List(ctx context.Context, filter dto.BatchFilter, actor *models.JWTClaims) ([]models.Batch, error)
	Status(ctx context.Context, id string, actor *models.JWTClaims) (*dto.BatchStatusResponse, error)
	Details(ctx context.Context, id string, actor *models.JWTClaims) (*dto.BatchDetailsResponse, error)
	OpenArchive(ctx context.Context, id string, actor *models.JWTClaims) (*service.FileDownload, error)
}

// BatchHandler manages generation run HTTP endpoints.
type BatchHandler struct {
	service batchService
}

// NewBatchHandler constructs the handler.
func NewBatchHandler(service batchService) *BatchHandler {
	return &BatchHandler{service: service}
}

// Generate godoc
// @Summary Start a certificate generation run
// @Tags Batches
// @Accept multipart/form-data
// @Produce json
// @Param template_id formData string true "Template ID"
// @Param name formData string false "Batch name"
// @Param mappings formData string true "JSON object mapping column headers to placeholders"
// @Param file formData file true "XLSX or CSV dataset"
// @Success 202 {object} response.Envelope
// @Security BearerAuth
// @Router /batches/generate [post]
func (h *BatchHandler) Generate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.GenerateBatchRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid generation payload"))
		return
	}
	upload, err := readUpload(c, "file")
	if err != nil {
		response.Error(c, err)
		return
	}
	accepted, err := h.service.Generate(c.Request.Context(), req, service.DataUpload{
		Filename: upload.filename,
		Size:     upload.size,
		Content:  upload.content,
	}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, accepted)
}

// List godoc
// @Summary List own generation runs
// @Tags Batches
// @Produce json
// @Param status query string false "Status filter"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	filter := dto.BatchFilter{
		Status: strings.TrimSpace(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}
	batches, err := h.service.List(c.Request.Context(), filter, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches)
}

// Status godoc
// @Summary Poll generation progress
// @Tags Batches
// @Produce json
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /batches/{batchId}/status [get]
func (h *BatchHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	status, err := h.service.Status(c.Request.Context(), c.Param("batchId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// Details godoc
// @Summary Get a run with its per-row outcomes
// @Tags Batches
// @Produce json
// @Param batchId path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /batches/{batchId}/details [get]
func (h *BatchHandler) Details(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	details, err := h.service.Details(c.Request.Context(), c.Param("batchId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details)
}

// DownloadZip godoc
// @Summary Download the finished archive
// @Tags Batches
// @Produce application/zip
// @Param batchId path string true "Batch ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /batches/{batchId}/download-zip [get]
func (h *BatchHandler) DownloadZip(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.OpenArchive(c.Request.Context(), c.Param("batchId"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read archive metadata"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), "application/zip", result.File, nil)
}
