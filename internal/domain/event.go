package domain

import "time"

type EventKind string

const (
	EventPrimarySuccess    EventKind = "primary_success"
	EventFallbackTriggered EventKind = "fallback_triggered"
	EventFallbackSuccess   EventKind = "fallback_success"
	EventTotalFailure      EventKind = "total_failure"
)

// GenerationEvent records one state transition of a generation request.
// It carries no message text or image data.
type GenerationEvent struct {
	RequestID  string
	Kind       EventKind
	Model      string
	Reason     string
	StatusCode int
	Latency    time.Duration
	OccurredAt time.Time
}

// Terminal reports whether the event ends a request.
func (k EventKind) Terminal() bool {
	return k == EventPrimarySuccess || k == EventFallbackSuccess || k == EventTotalFailure
}

// RequestSummary is the final outcome of one generation request.
type RequestSummary struct {
	RequestID string
	Outcome   EventKind
	Model     string
	Reason    string
	UpdatedAt time.Time
}
