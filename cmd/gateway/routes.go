package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pankajydv07/ai-tutor/gateway/internal/pipeline"
	"github.com/pankajydv07/ai-tutor/gateway/internal/render"
	"github.com/pankajydv07/ai-tutor/gateway/internal/session"
	"github.com/pankajydv07/ai-tutor/gateway/internal/trace"
	"github.com/pankajydv07/ai-tutor/gateway/internal/turn"
)

const (
	// maxChatBody caps the turn submission body.
	maxChatBody = 1 << 20

	maxSessionIDLen = 128

	// workerProxyTimeout bounds proxied calls to the render worker.
	workerProxyTimeout = 10 * time.Second

	// defaultTraceTurnLimit is how many turns are returned when the caller
	// omits the ?limit= query parameter.
	defaultTraceTurnLimit = 20
)

type turnProcessor interface {
	Process(ctx context.Context, req turn.Request) (*turn.Result, error)
}

type deps struct {
	processor  turnProcessor
	sessions   session.Store
	worker     render.Worker
	ttsClient  *pipeline.TTSRouter
	services   *serviceHub
	wsHandler  http.Handler
	traceStore *trace.Store
	audioDir   string
	videoDir   string
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.HandleFunc("/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("POST /api/chat", d.handleChat)
	mux.HandleFunc("GET /api/sessions/{id}", d.handleSessionPoll)
	mux.HandleFunc("GET /api/sessions/{id}/stream", d.handleSessionStream)
	mux.HandleFunc("GET /api/render/health", d.handleRenderHealth)
	mux.HandleFunc("GET /api/render/progress/{id}", d.handleRenderProgress)
	mux.HandleFunc("POST /api/tts/warmup", d.handleTTSWarmup)
	mux.HandleFunc("GET /api/tts/health", d.handleTTSHealth)
	mux.HandleFunc("GET /api/services", d.handleServices)
	mux.HandleFunc("GET /api/services/stream", d.handleServicesStream)
	mux.HandleFunc("GET /api/services/{name}/status", d.handleServiceStatus)
	mux.Handle("GET /audio/", http.StripPrefix("/audio/", http.FileServer(http.Dir(d.audioDir))))
	mux.Handle("GET /videos/", http.StripPrefix("/videos/", http.FileServer(http.Dir(d.videoDir))))
	if d.wsHandler != nil {
		mux.Handle("/ws/sync", d.wsHandler)
	}
	registerTraceRoutes(mux, d.traceStore)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type chatRequest struct {
	Message   string `json:"message"`
	VideoMode bool   `json:"videoMode"`
	SessionID string `json:"sessionId"`
}

func (d deps) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if len(req.SessionID) > maxSessionIDLen || render.SafeID(req.SessionID) != req.SessionID {
		http.Error(w, "sessionId must be at most 128 letters, digits, '-' or '_'", http.StatusBadRequest)
		return
	}

	mode := turn.ModePlain
	if req.VideoMode {
		mode = turn.ModeVideo
	}
	res, err := d.processor.Process(r.Context(), turn.Request{
		Message:   req.Message,
		Mode:      mode,
		SessionID: req.SessionID,
	})
	if err != nil {
		slog.Warn("chat cancelled", "session_id", req.SessionID, "error", err)
		http.Error(w, "request cancelled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res.Response())
}

type pollResponse struct {
	Ready     bool       `json:"ready"`
	VideoURL  string     `json:"videoUrl,omitempty"`
	VideoPath string     `json:"videoPath,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

func readyBody(rec *session.Record) pollResponse {
	ts := rec.Timestamp
	return pollResponse{Ready: true, VideoURL: rec.VideoURL, VideoPath: rec.VideoPath, Timestamp: &ts}
}

func (d deps) handleSessionPoll(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := d.sessions.TakeIfReady(r.Context(), id)
	if errors.Is(err, session.ErrEmptyID) {
		http.Error(w, "session id required", http.StatusBadRequest)
		return
	}
	if err != nil {
		slog.Error("session poll", "session_id", id, "error", err)
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
		return
	}

	body := pollResponse{}
	if rec != nil {
		body = readyBody(rec)
		slog.Info("session_delivered", "session_id", id, "via", "poll")
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func (d deps) handleRenderHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), workerProxyTimeout)
	defer cancel()
	h, err := d.worker.Health(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h)
}

func (d deps) handleRenderProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), workerProxyTimeout)
	defer cancel()
	progress, err := d.worker.Progress(ctx, r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"progress": progress})
}

func (d deps) handleTTSWarmup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Engine string `json:"engine"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if d.ttsClient == nil || !d.ttsClient.Has(req.Engine) {
		http.Error(w, "engine not available", http.StatusNotFound)
		return
	}
	slog.Info("warming up tts engine", "engine", req.Engine)
	_, err := d.ttsClient.Synthesize(r.Context(), "Hello.", req.Engine, pipeline.TTSOptions{})
	if err != nil {
		slog.Error("tts warmup", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("tts engine warmed up", "engine", req.Engine)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (d deps) handleTTSHealth(w http.ResponseWriter, r *http.Request) {
	engine := r.URL.Query().Get("engine")
	if engine == "" && d.ttsClient != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]string{"engines": d.ttsClient.Engines()})
		return
	}
	if d.ttsClient == nil || !d.ttsClient.Has(engine) {
		http.Error(w, "engine not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "engine": engine})
}

func registerTraceRoutes(mux *http.ServeMux, store *trace.Store) {
	mux.HandleFunc("GET /api/traces/turns", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		limit := queryInt(r, "limit", defaultTraceTurnLimit)
		offset := queryInt(r, "offset", 0)
		turns, total, err := store.ListTurns(r.Context(), r.URL.Query().Get("session_id"), limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"turns": turns, "total": total})
	})

	mux.HandleFunc("GET /api/traces/turns/{id}", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "tracing disabled", http.StatusNotFound)
			return
		}
		t, spans, err := store.GetTurn(r.Context(), r.PathValue("id"))
		if errors.Is(err, trace.ErrTurnNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"turn": t, "spans": spans})
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
