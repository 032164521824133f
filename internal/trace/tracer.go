package trace

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
)

const (
	maxIOLen     = 500
	queueSize    = 256
	writeTimeout = 5 * time.Second
)

type traceMsg struct {
	kind string // "turn_create", "turn_update", "span"
	turn Turn
	span Span
}

// Tracer writes trace data asynchronously via a buffered channel shared by
// every request. Writes are dropped when the buffer is full.
// All methods are nil-safe (no-op on nil receiver).
type Tracer struct {
	store writer
	ch    chan traceMsg
	done  chan struct{}
}

type writer interface {
	CreateTurn(ctx context.Context, t Turn) error
	UpdateTurn(ctx context.Context, t Turn) error
	CreateSpan(ctx context.Context, sp Span) error
}

// NewTracer starts the background writer. Must call Close when done.
func NewTracer(store *Store) *Tracer {
	return newTracer(store)
}

func newTracer(w writer) *Tracer {
	t := &Tracer{
		store: w,
		ch:    make(chan traceMsg, queueSize),
		done:  make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for msg := range t.ch {
		t.handle(msg)
	}
}

func (t *Tracer) handle(m traceMsg) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	handlers := map[string]func() error{
		"turn_create": func() error { return t.store.CreateTurn(ctx, m.turn) },
		"turn_update": func() error { return t.store.UpdateTurn(ctx, m.turn) },
		"span":        func() error { return t.store.CreateSpan(ctx, m.span) },
	}
	fn, ok := handlers[m.kind]
	if !ok {
		return
	}
	if err := fn(); err != nil {
		slog.Warn("trace write failed", "kind", m.kind, "error", err)
		metrics.Errors.WithLabelValues("trace", m.kind).Inc()
	}
}

func (t *Tracer) send(m traceMsg) {
	select {
	case t.ch <- m:
	default:
		metrics.Errors.WithLabelValues("trace", "dropped").Inc()
	}
}

// StartTurn begins a new turn and returns its ID.
func (t *Tracer) StartTurn(sessionID, mode, message string) string {
	if t == nil {
		return ""
	}
	id := uuid.NewString()
	t.send(traceMsg{kind: "turn_create", turn: Turn{
		ID:        id,
		SessionID: sessionID,
		Mode:      mode,
		Message:   truncate(message, maxIOLen),
		StartedAt: time.Now(),
	}})
	return id
}

// EndTurn finalizes a turn.
func (t *Tracer) EndTurn(turnID string, durationMs float64, response, outcome string, parts int, videoGenerating bool) {
	if t == nil || turnID == "" {
		return
	}
	t.send(traceMsg{kind: "turn_update", turn: Turn{
		ID:              turnID,
		DurationMs:      durationMs,
		Response:        truncate(response, maxIOLen),
		Outcome:         outcome,
		PartCount:       parts,
		VideoGenerating: videoGenerating,
	}})
}

// RecordSpan records a completed span.
func (t *Tracer) RecordSpan(turnID, name string, startedAt time.Time, durationMs float64, input, output, status, errMsg string) {
	if t == nil || turnID == "" {
		return
	}
	t.send(traceMsg{
		kind: "span",
		span: Span{
			ID:         uuid.NewString(),
			TurnID:     turnID,
			Name:       name,
			StartedAt:  startedAt,
			DurationMs: durationMs,
			Input:      truncate(input, maxIOLen),
			Output:     truncate(output, maxIOLen),
			Status:     status,
			Error:      errMsg,
		},
	})
}

// Stage records a span that started at start and ended now, deriving its
// status from err.
func (t *Tracer) Stage(turnID, name string, start time.Time, input, output string, err error) {
	status, errMsg := "ok", ""
	if err != nil {
		status, errMsg = "error", err.Error()
	}
	t.RecordSpan(turnID, name, start, float64(time.Since(start).Milliseconds()), input, output, status, errMsg)
}

// Close drains pending writes and shuts down the background goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	close(t.ch)
	<-t.done
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
