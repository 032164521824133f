package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/session"
)

const (
	// readyPollInterval is how often a store without push support is checked.
	readyPollInterval = time.Second

	// readyHeartbeat keeps idle SSE connections open through proxies.
	readyHeartbeat = 15 * time.Second
)

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// handleSessionStream holds the connection open until the session's video is
// written, then delivers it once with the same take-once semantics as polling.
func (d deps) handleSessionStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	setSSEHeaders(w)
	flusher.Flush()

	ctx := r.Context()
	heartbeat := time.NewTicker(readyHeartbeat)
	defer heartbeat.Stop()

	for {
		rec, err := d.sessions.TakeIfReady(ctx, id)
		if err != nil {
			slog.Error("session stream take", "session_id", id, "error", err)
			writeEvent(w, flusher, "error", map[string]string{"error": err.Error()})
			return
		}
		if rec != nil {
			writeEvent(w, flusher, "ready", readyBody(rec))
			slog.Info("session_delivered", "session_id", id, "via", "stream")
			return
		}

		if !d.waitReady(ctx, id, w, flusher, heartbeat.C) {
			return
		}
	}
}

// waitReady blocks until the store signals id or the next heartbeat, which
// doubles as a re-check in case a readiness notification was lost. It
// reports false once the stream is finished.
func (d deps) waitReady(ctx context.Context, id string, w http.ResponseWriter, flusher http.Flusher, heartbeat <-chan time.Time) bool {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	wake := d.wake(waitCtx, id)

	select {
	case <-ctx.Done():
		return false
	case err := <-wake:
		if err != nil {
			if ctx.Err() == nil {
				writeEvent(w, flusher, "error", map[string]string{"error": err.Error()})
			}
			return false
		}
		return true
	case <-heartbeat:
		fmt.Fprint(w, ": ping\n\n")
		flusher.Flush()
		return true
	}
}

// wake fires when a record for id may have been written. Stores that push
// readiness are waited on; others are re-checked on a fixed interval.
func (d deps) wake(ctx context.Context, id string) <-chan error {
	ch := make(chan error, 1)
	waiter, ok := d.sessions.(session.Waiter)
	if !ok {
		go func() {
			t := time.NewTimer(readyPollInterval)
			defer t.Stop()
			select {
			case <-t.C:
				ch <- nil
			case <-ctx.Done():
				ch <- ctx.Err()
			}
		}()
		return ch
	}
	go func() { ch <- waiter.Wait(ctx, id) }()
	return ch
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}
