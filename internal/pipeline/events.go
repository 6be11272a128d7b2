package pipeline

import (
	"context"
	"time"
)

// EventType names a run lifecycle event
type EventType string

const (
	EventRunStarted     EventType = "run:started"
	EventStageStarted   EventType = "stage:started"
	EventStageCompleted EventType = "stage:completed"
	EventStageFailed    EventType = "stage:failed"
	EventRunCompleted   EventType = "run:completed"
	EventRunEmpty       EventType = "run:nothing_to_write"
	EventRunFailed      EventType = "run:failed"
)

// Event reports progress of a run to observers such as the websocket feed
type Event struct {
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	Stage     string                 `json:"stage,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// EventSink receives run events. Publish must not block the run.
type EventSink interface {
	Publish(ctx context.Context, event Event)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(ctx context.Context, event Event)

// Publish implements EventSink
func (f EventSinkFunc) Publish(ctx context.Context, event Event) { f(ctx, event) }

type nopSink struct{}

func (nopSink) Publish(context.Context, Event) {}
