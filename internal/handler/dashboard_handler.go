package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sameerreddy213/certmaker-api/internal/models"
	appErrors "github.com/sameerreddy213/certmaker-api/pkg/errors"
	"github.com/sameerreddy213/certmaker-api/pkg/response"
)

type dashboardService interface {
	Stats(ctx context.Context, actor *models.JWTClaims) (*models.DashboardStats, error)
}

// DashboardHandler serves aggregated per-user statistics.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Stats godoc
// @Summary Aggregate dashboard statistics
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats)
}
