package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// hubMetrics are the hub's OpenTelemetry instruments. A nil *hubMetrics
// records nothing.
type hubMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesSent       metric.Int64Counter
	messageBytes       metric.Int64Counter
	droppedEvents      metric.Int64Counter
}

func newHubMetrics(meter metric.Meter) (*hubMetrics, error) {
	if meter == nil {
		return nil, nil
	}

	var (
		m   hubMetrics
		err error
	)
	if m.connectionsTotal, err = meter.Int64Counter(
		"websocket_connections",
		metric.WithDescription("Total number of WebSocket connections"),
	); err != nil {
		return nil, err
	}
	if m.connectionsActive, err = meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	); err != nil {
		return nil, err
	}
	if m.connectionDuration, err = meter.Float64Histogram(
		"websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.messagesSent, err = meter.Int64Counter(
		"websocket_messages_sent",
		metric.WithDescription("Messages queued to WebSocket clients"),
	); err != nil {
		return nil, err
	}
	if m.messageBytes, err = meter.Int64Counter(
		"websocket_message_bytes",
		metric.WithDescription("Bytes queued to WebSocket clients"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.droppedEvents, err = meter.Int64Counter(
		"websocket_dropped_events",
		metric.WithDescription("Run events dropped because the broadcast queue was full"),
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *hubMetrics) connected(ctx context.Context) {
	if m == nil {
		return
	}
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
}

func (m *hubMetrics) disconnected(ctx context.Context, d time.Duration, reason string) {
	if m == nil {
		return
	}
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *hubMetrics) sent(ctx context.Context, size int) {
	if m == nil {
		return
	}
	m.messagesSent.Add(ctx, 1)
	m.messageBytes.Add(ctx, int64(size))
}

func (m *hubMetrics) dropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.droppedEvents.Add(ctx, 1)
}
