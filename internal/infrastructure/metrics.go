package infrastructure

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics holds the instruments recorded by flagging runs and the
// HTTP surface. A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	RunsTotal       metric.Int64Counter
	RunDuration     metric.Float64Histogram
	StageDuration   metric.Float64Histogram
	StageErrors     metric.Int64Counter
	RowsProcessed   metric.Int64Counter
	IndicatorHits   metric.Int64Counter
	ActiveRuns      metric.Int64UpDownCounter
	HTTPRequests    metric.Int64Counter
	HTTPRequestTime metric.Float64Histogram
}

// NewPipelineMetrics creates the instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	var (
		m   PipelineMetrics
		err error
	)

	if m.RunsTotal, err = meter.Int64Counter(
		"flagger_runs",
		metric.WithDescription("Completed flagging runs by outcome"),
	); err != nil {
		return nil, err
	}
	if m.RunDuration, err = meter.Float64Histogram(
		"flagger_run_duration_seconds",
		metric.WithDescription("Flagging run duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.StageDuration, err = meter.Float64Histogram(
		"flagger_stage_duration_seconds",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.StageErrors, err = meter.Int64Counter(
		"flagger_stage_errors",
		metric.WithDescription("Pipeline stage failures by stage and error type"),
	); err != nil {
		return nil, err
	}
	if m.RowsProcessed, err = meter.Int64Counter(
		"flagger_rows",
		metric.WithDescription("Rows seen at each pipeline stage"),
	); err != nil {
		return nil, err
	}
	if m.IndicatorHits, err = meter.Int64Counter(
		"flagger_indicator_hits",
		metric.WithDescription("Rows flagged true per rule set"),
	); err != nil {
		return nil, err
	}
	if m.ActiveRuns, err = meter.Int64UpDownCounter(
		"flagger_active_runs",
		metric.WithDescription("Runs currently executing"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequests, err = meter.Int64Counter(
		"http_requests",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}
	if m.HTTPRequestTime, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordRun records a finished run.
func (m *PipelineMetrics) RecordRun(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.RunsTotal.Add(ctx, 1, attrs)
	m.RunDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordActiveRun moves the active run gauge by delta.
func (m *PipelineMetrics) RecordActiveRun(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.ActiveRuns.Add(ctx, delta)
}

// RecordStage records a stage's duration, and a failure when errType is set.
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage string, d time.Duration, errType string) {
	if m == nil {
		return
	}
	status := "success"
	if errType != "" {
		status = "failure"
		m.StageErrors.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("error.type", errType),
		))
	}
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}

// RecordRows records the row count observed at a stage.
func (m *PipelineMetrics) RecordRows(ctx context.Context, stage string, n int) {
	if m == nil {
		return
	}
	m.RowsProcessed.Add(ctx, int64(n), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordIndicatorHits records how many rows a rule set flagged.
func (m *PipelineMetrics) RecordIndicatorHits(ctx context.Context, ruleSet string, n int) {
	if m == nil {
		return
	}
	m.IndicatorHits.Add(ctx, int64(n), metric.WithAttributes(attribute.String("rule_set", ruleSet)))
}

// RecordHTTPRequest records one served request.
func (m *PipelineMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequests.Add(ctx, 1, attrs)
	m.HTTPRequestTime.Record(ctx, d.Seconds(), attrs)
}
