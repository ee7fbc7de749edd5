package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sameerreddy213/certmaker-api/internal/models"
	appErrors "github.com/sameerreddy213/certmaker-api/pkg/errors"
)

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type templateCounter interface {
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
}

type batchCounter interface {
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
}

type certificateCounter interface {
	CountByOwnerAndStatus(ctx context.Context, ownerID string, status models.CertificateStatus) (int64, error)
	CountGeneratedPerDay(ctx context.Context, ownerID string, days int) ([]models.DailyCount, error)
}

// recentActivityDays is the trailing window shown on the dashboard chart.
const recentActivityDays = 7

// DashboardService aggregates per-owner totals, with a short-lived cache
// in front of the counting queries.
type DashboardService struct {
	templates templateCounter
	batches   batchCounter
	certs     certificateCounter
	cache     dashboardCache
	cacheTTL  time.Duration
	logger    *zap.Logger
}

// NewDashboardService constructs the service. Cache may be nil.
func NewDashboardService(templates templateCounter, batches batchCounter, certs certificateCounter, cache dashboardCache, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &DashboardService{
		templates: templates,
		batches:   batches,
		certs:     certs,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Stats returns the owner's aggregate counts.
func (s *DashboardService) Stats(ctx context.Context, actor *models.JWTClaims) (*models.DashboardStats, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	key := cacheKey(actor.UserID)
	if s.cache != nil {
		var cached models.DashboardStats
		err := s.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("dashboard cache read failed", "error", err)
		}
	}

	stats, err := s.collect(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Sugar().Warnw("dashboard cache write failed", "error", err)
		}
	}
	return stats, nil
}

// Invalidate drops the cached aggregate for an owner. Called after a
// batch finishes so the next poll sees fresh totals.
func (s *DashboardService) Invalidate(ctx context.Context, ownerID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(ownerID)); err != nil {
		s.logger.Sugar().Warnw("dashboard cache invalidate failed", "ownerId", ownerID, "error", err)
	}
}

func (s *DashboardService) collect(ctx context.Context, ownerID string) (*models.DashboardStats, error) {
	templates, err := s.templates.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count templates")
	}
	batches, err := s.batches.CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count batches")
	}
	generated, err := s.certs.CountByOwnerAndStatus(ctx, ownerID, models.CertificateStatusGenerated)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count generated certificates")
	}
	failed, err := s.certs.CountByOwnerAndStatus(ctx, ownerID, models.CertificateStatusFailed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count failed certificates")
	}
	daily, err := s.certs.CountGeneratedPerDay(ctx, ownerID, recentActivityDays)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect recent activity")
	}
	return &models.DashboardStats{
		Templates:             templates,
		Batches:               batches,
		CertificatesGenerated: generated,
		CertificatesFailed:    failed,
		RecentActivity:        daily,
	}, nil
}

func cacheKey(ownerID string) string {
	return fmt.Sprintf("dashboard:stats:%s", ownerID)
}
