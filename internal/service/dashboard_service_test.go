package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sameerreddy213/certmaker-api/internal/models"
	appErrors "github.com/sameerreddy213/certmaker-api/pkg/errors"
)

type countersStub struct {
	templates int64
	batches   int64
	generated int64
	failed    int64
	calls     int
}

func (s *countersStub) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	s.calls++
	return s.templates, nil
}

func (s *countersStub) CountByOwnerAndStatus(ctx context.Context, ownerID string, status models.CertificateStatus) (int64, error) {
	s.calls++
	if status == models.CertificateStatusFailed {
		return s.failed, nil
	}
	return s.generated, nil
}

func (s *countersStub) CountGeneratedPerDay(ctx context.Context, ownerID string, days int) ([]models.DailyCount, error) {
	s.calls++
	return []models.DailyCount{{Day: "2026-08-28", Generated: s.generated}}, nil
}

type memoryCacheStub struct {
	entries map[string][]byte
	hits    int
}

func newMemoryCacheStub() *memoryCacheStub {
	return &memoryCacheStub{entries: make(map[string][]byte)}
}

func (c *memoryCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	stats := dest.(*models.DashboardStats)
	_ = raw
	*stats = models.DashboardStats{Templates: 7}
	return nil
}

func (c *memoryCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.entries[key] = []byte("set")
	return nil
}

func (c *memoryCacheStub) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func TestDashboardServiceStatsCachesResult(t *testing.T) {
	counters := &countersStub{templates: 3, batches: 5, generated: 40, failed: 2}
	cache := newMemoryCacheStub()
	svc := NewDashboardService(counters, counters, counters, cache, time.Minute, zap.NewNop())
	actor := &models.JWTClaims{UserID: "user-1"}

	stats, err := svc.Stats(context.Background(), actor)
	require.NoError(t, err)
	require.EqualValues(t, 3, stats.Templates)
	require.EqualValues(t, 40, stats.CertificatesGenerated)
	require.EqualValues(t, 2, stats.CertificatesFailed)
	require.Len(t, stats.RecentActivity, 1)
	require.EqualValues(t, 40, stats.RecentActivity[0].Generated)
	firstCalls := counters.calls

	// Second read is served from the cache.
	cached, err := svc.Stats(context.Background(), actor)
	require.NoError(t, err)
	require.EqualValues(t, 7, cached.Templates)
	require.Equal(t, firstCalls, counters.calls)
	require.Equal(t, 1, cache.hits)

	// Invalidation forces a fresh aggregation.
	svc.Invalidate(context.Background(), "user-1")
	_, err = svc.Stats(context.Background(), actor)
	require.NoError(t, err)
	require.Greater(t, counters.calls, firstCalls)
}

func TestDashboardServiceStatsWithoutCache(t *testing.T) {
	counters := &countersStub{templates: 1, batches: 2, generated: 3, failed: 0}
	svc := NewDashboardService(counters, counters, counters, nil, 0, zap.NewNop())

	stats, err := svc.Stats(context.Background(), &models.JWTClaims{UserID: "user-1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Templates)

	_, err = svc.Stats(context.Background(), nil)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
