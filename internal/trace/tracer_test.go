package trace

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu      sync.Mutex
	turns   map[string]Turn
	updates []Turn
	spans   []Span
	fail    bool
}

func newMemWriter() *memWriter { return &memWriter{turns: map[string]Turn{}} }

func (m *memWriter) CreateTurn(_ context.Context, t Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[t.ID] = t
	return nil
}

func (m *memWriter) UpdateTurn(_ context.Context, t Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, t)
	return nil
}

func (m *memWriter) CreateSpan(_ context.Context, sp Span) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("db down")
	}
	m.spans = append(m.spans, sp)
	return nil
}

func TestTracerWritesTurnAndSpans(t *testing.T) {
	w := newMemWriter()
	tr := newTracer(w)

	id := tr.StartTurn("sess-1", "video", "what is a derivative?")
	require.NotEmpty(t, id)
	tr.Stage(id, "llm", time.Now(), "q", "a", nil)
	tr.Stage(id, "tts", time.Now(), "a", "", errors.New("boom"))
	tr.EndTurn(id, 1200, "reply", "ok", 3, true)
	tr.Close()

	require.Contains(t, w.turns, id)
	assert.Equal(t, "sess-1", w.turns[id].SessionID)
	require.Len(t, w.spans, 2)
	assert.Equal(t, "ok", w.spans[0].Status)
	assert.Equal(t, "error", w.spans[1].Status)
	assert.Equal(t, "boom", w.spans[1].Error)
	require.Len(t, w.updates, 1)
	assert.Equal(t, 3, w.updates[0].PartCount)
	assert.True(t, w.updates[0].VideoGenerating)
}

func TestTracerTruncatesIO(t *testing.T) {
	w := newMemWriter()
	tr := newTracer(w)
	tr.RecordSpan("turn", "llm", time.Now(), 1, strings.Repeat("x", 2*maxIOLen), "", "ok", "")
	tr.Close()

	require.Len(t, w.spans, 1)
	assert.Len(t, w.spans[0].Input, maxIOLen)
}

func TestTracerWriteFailureDoesNotStop(t *testing.T) {
	w := newMemWriter()
	w.fail = true
	tr := newTracer(w)
	tr.RecordSpan("turn", "llm", time.Now(), 1, "", "", "ok", "")
	id := tr.StartTurn("s", "plain", "")
	tr.Close()

	assert.Empty(t, w.spans)
	assert.Contains(t, w.turns, id)
}

func TestNilTracerIsNoop(t *testing.T) {
	var tr *Tracer
	assert.Empty(t, tr.StartTurn("s", "plain", "hi"))
	tr.EndTurn("x", 1, "", "ok", 1, false)
	tr.Stage("x", "llm", time.Now(), "", "", nil)
	tr.Close()
}
