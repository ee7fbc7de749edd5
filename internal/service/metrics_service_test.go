package service

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsServiceExposesPipelineCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RowProcessed(true)
	m.RowProcessed(false)
	m.BatchFinished("completed")
	m.ObserveConversion(250 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	require.Contains(t, body, `generation_rows_total{outcome="generated"} 1`)
	require.Contains(t, body, `generation_rows_total{outcome="failed"} 1`)
	require.Contains(t, body, `generation_batches_total{status="completed"} 1`)
	require.Contains(t, body, "conversion_duration_seconds_count 1")
}
