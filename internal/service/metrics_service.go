package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the generation pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	rowsProcessed      *prometheus.CounterVec
	batchesFinished    *prometheus.CounterVec
	conversionDuration prometheus.Histogram
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	rowsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_rows_total",
		Help: "Data rows attempted, by outcome",
	}, []string{"outcome"})

	batchesFinished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_batches_total",
		Help: "Generation runs finished, by final status",
	}, []string{"status"})

	conversionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "conversion_duration_seconds",
		Help:    "Duration of document to PDF conversions in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, rowsProcessed, batchesFinished, conversionDuration, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		rowsProcessed:      rowsProcessed,
		batchesFinished:    batchesFinished,
		conversionDuration: conversionDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RowProcessed counts one attempted data row.
func (m *MetricsService) RowProcessed(success bool) {
	if m == nil {
		return
	}
	outcome := "generated"
	if !success {
		outcome = "failed"
	}
	m.rowsProcessed.WithLabelValues(outcome).Inc()
}

// ObserveConversion records one document-to-PDF conversion duration.
func (m *MetricsService) ObserveConversion(duration time.Duration) {
	if m == nil {
		return
	}
	m.conversionDuration.Observe(duration.Seconds())
}

// BatchFinished counts one finished generation run.
func (m *MetricsService) BatchFinished(status string) {
	if m == nil {
		return
	}
	m.batchesFinished.WithLabelValues(status).Inc()
}
