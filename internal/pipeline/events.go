package pipeline

import (
	"context"
	"time"
)

// EventType is the lifecycle point an Event reports.
type EventType string

const (
	EventStarted   EventType = "started"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// Event describes one pipeline run for external listeners.
type Event struct {
	JobID           string    `json:"job_id"`
	Type            EventType `json:"type"`
	Filename        string    `json:"filename"`
	SourceCode      string    `json:"source_code,omitempty"`
	TargetCode      string    `json:"target_code,omitempty"`
	Stage           Stage     `json:"stage,omitempty"`
	Error           string    `json:"error,omitempty"`
	Segments        int       `json:"segments,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	ElapsedSeconds  float64   `json:"elapsed_seconds,omitempty"`
	TranscriptFile  string    `json:"transcript_file,omitempty"`
	TranslationFile string    `json:"translation_file,omitempty"`
	TranscriptKey   string    `json:"transcript_key,omitempty"`
	TranslationKey  string    `json:"translation_key,omitempty"`
	Time            time.Time `json:"time"`
}

// Notifier receives pipeline events. Implementations must not block the
// run for long; delivery failures are theirs to log.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}
