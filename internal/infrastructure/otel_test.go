package infrastructure

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flagcli/internal/config"
)

func TestInitializeOTel_Defaults(t *testing.T) {
	providers, err := InitializeOTel(nil, DiscardLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)
	defer providers.Shutdown(context.Background())

	assert.Nil(t, providers.TracerProvider, "tracing is off by default")
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Registry)
	assert.NotNil(t, providers.PrometheusHTTP)
}

func TestInitializeOTel_Disabled(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    "test",
		TraceExporter:  config.TraceExporterNone,
		MetricExporter: config.MetricExporterNone,
	}, DiscardLogger())
	require.NoError(t, err)

	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Meter, "noop meter is still usable")

	_, span := providers.Tracer.Start(context.Background(), "noop")
	span.End()

	assert.Error(t, providers.WriteMetricsTextfile(filepath.Join(t.TempDir(), "m.prom")))
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTel_Unsupported(t *testing.T) {
	_, err := InitializeOTel(&OTelConfig{TraceExporter: "jaeger"}, DiscardLogger())
	assert.Error(t, err)

	_, err = InitializeOTel(&OTelConfig{MetricExporter: "statsd"}, DiscardLogger())
	assert.Error(t, err)
}

func TestTraceCorrelation(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.TraceExporter = config.TraceExporterStdout
	providers, err := InitializeOTel(cfg, DiscardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestPipelineMetrics_Exported(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), DiscardLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	m, err := NewPipelineMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordActiveRun(ctx, 1)
	m.RecordRows(ctx, "loaded", 10)
	m.RecordIndicatorHits(ctx, "Retail", 3)
	m.RecordStage(ctx, "merge", 20*time.Millisecond, "")
	m.RecordStage(ctx, "write", time.Millisecond, "IO")
	m.RecordRun(ctx, "success", time.Second)
	m.RecordHTTPRequest(ctx, http.MethodGet, "/api/health", http.StatusOK, time.Millisecond)
	m.RecordActiveRun(ctx, -1)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	for _, name := range []string{
		"flagger_runs",
		"flagger_run_duration_seconds",
		"flagger_stage_duration_seconds",
		"flagger_stage_errors",
		"flagger_rows",
		"flagger_indicator_hits",
		"http_requests",
		"go_goroutines",
	} {
		assert.Contains(t, string(body), name)
	}

	path := filepath.Join(t.TempDir(), "flagger.prom")
	require.NoError(t, providers.WriteMetricsTextfile(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "flagger_indicator_hits")
}

func TestPipelineMetrics_NilIsSafe(t *testing.T) {
	var m *PipelineMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordRun(ctx, "success", time.Second)
		m.RecordActiveRun(ctx, 1)
		m.RecordStage(ctx, "load", time.Second, "")
		m.RecordRows(ctx, "load", 1)
		m.RecordIndicatorHits(ctx, "x", 1)
		m.RecordHTTPRequest(ctx, "GET", "/", 200, time.Second)
	})
}
