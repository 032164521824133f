package trace

import "time"

// Turn is one chat request through the turn processor.
type Turn struct {
	ID              string    `json:"id"`
	SessionID       string    `json:"session_id"`
	Mode            string    `json:"mode"`
	Message         string    `json:"message"`
	StartedAt       time.Time `json:"started_at"`
	DurationMs      float64   `json:"duration_ms,omitempty"`
	Response        string    `json:"response,omitempty"`
	Outcome         string    `json:"outcome"`
	PartCount       int       `json:"part_count"`
	VideoGenerating bool      `json:"video_generating"`
	SpanCount       int       `json:"span_count,omitempty"`
}

// Span is one stage of a turn or of its background render.
type Span struct {
	ID         string    `json:"id"`
	TurnID     string    `json:"turn_id"`
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs float64   `json:"duration_ms"`
	Input      string    `json:"input,omitempty"`
	Output     string    `json:"output,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}
