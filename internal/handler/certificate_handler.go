package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sameerreddy213/certmaker-api/internal/models"
	"github.com/sameerreddy213/certmaker-api/internal/service"
	appErrors "github.com/sameerreddy213/certmaker-api/pkg/errors"
	"github.com/sameerreddy213/certmaker-api/pkg/response"
)

type certificateService interface {
	Certificate(ctx context.Context, id string, actor *models.JWTClaims) (*models.Certificate, error)
	OpenCertificate(ctx context.Context, id string, actor *models.JWTClaims) (*service.FileDownload, error)
}

// CertificateHandler serves individual certificate records and files.
type CertificateHandler struct {
	service certificateService
}

// NewCertificateHandler constructs the handler.
func NewCertificateHandler(service certificateService) *CertificateHandler {
	return &CertificateHandler{service: service}
}

// Get godoc
// @Summary Get one certificate record
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /certificates/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	cert, err := h.service.Certificate(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert)
}

// Download godoc
// @Summary Download a certificate PDF
// @Tags Certificates
// @Produce application/pdf
// @Param id path string true "Certificate ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /certificates/{id}/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	h.stream(c, "attachment")
}

// View godoc
// @Summary View a certificate PDF inline
// @Tags Certificates
// @Produce application/pdf
// @Param id path string true "Certificate ID"
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /certificates/{id}/view [get]
func (h *CertificateHandler) View(c *gin.Context) {
	h.stream(c, "inline")
}

func (h *CertificateHandler) stream(c *gin.Context, disposition string) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.OpenCertificate(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read certificate metadata"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), "application/pdf", result.File, nil)
}
