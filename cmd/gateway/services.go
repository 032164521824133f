package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/orchestrator"
)

// serviceProbeTimeout bounds one sweep over every collaborator.
const serviceProbeTimeout = 5 * time.Second

// serviceHub fans collaborator status snapshots out to SSE subscribers.
type serviceHub struct {
	checker orchestrator.Checker

	mu   sync.Mutex
	subs map[chan []byte]struct{}
	last []byte
}

func newServiceHub(checker orchestrator.Checker) *serviceHub {
	return &serviceHub{
		checker: checker,
		subs:    map[chan []byte]struct{}{},
	}
}

func (h *serviceHub) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *serviceHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *serviceHub) fetch(ctx context.Context) []byte {
	ctx, cancel := context.WithTimeout(ctx, serviceProbeTimeout)
	defer cancel()
	svcs, err := h.checker.StatusAll(ctx)
	if err != nil {
		slog.Error("service probe failed", "error", err)
		return nil
	}
	data, err := json.Marshal(svcs)
	if err != nil {
		return nil
	}
	return data
}

// broadcast sends data to every subscriber without blocking. A subscriber
// whose buffer is full misses this snapshot and gets the next one.
func (h *serviceHub) broadcast(data []byte) {
	if data == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if bytes.Equal(data, h.last) {
		return
	}
	h.last = data
	for ch := range h.subs {
		select {
		case ch <- data:
		default:
		}
	}
}

// snapshot returns the most recent broadcast, or nil before the first probe.
func (h *serviceHub) snapshot() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// run re-probes every interval until ctx ends, broadcasting on change.
func (h *serviceHub) run(ctx context.Context, interval time.Duration) {
	h.broadcast(h.fetch(ctx))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.broadcast(h.fetch(ctx))
		}
	}
}

func (d deps) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := d.services.checker.StatusAll(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(services)
}

func (d deps) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	info, err := d.services.checker.Status(r.Context(), r.PathValue("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func (d deps) handleServicesStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	setSSEHeaders(w)

	ch := d.services.subscribe()
	defer d.services.unsubscribe(ch)

	if data := d.services.snapshot(); data != nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	flusher.Flush()
	slog.Info("services/stream client connected", "remote", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			slog.Info("services/stream client disconnected", "remote", r.RemoteAddr)
			return
		case msg := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
