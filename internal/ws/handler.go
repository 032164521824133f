// Package ws serves the avatar sync socket: the browser reports parts it
// received plus its audio and video element events, and the server answers
// with one avatar frame per tick.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pankajydv07/ai-tutor/gateway/internal/avatar"
	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
	"github.com/pankajydv07/ai-tutor/gateway/internal/turn"
	"github.com/pankajydv07/ai-tutor/gateway/internal/videosync"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var errUnknownMessage = errors.New("unknown message type")

// HandlerConfig holds what every sync socket shares.
type HandlerConfig struct {
	Videos        *videosync.Registry
	Avatar        avatar.Config
	FPS           int
	MaxConcurrent int
}

// Handler manages sync sockets with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a sync socket handler.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.Videos == nil {
		cfg.Videos = videosync.NewRegistry()
	}
	return &Handler{
		cfg: cfg,
		sem: make(chan struct{}, maxConc),
	}
}

// clientMessage is one text frame from the browser.
type clientMessage struct {
	Type string `json:"type"` // "part", "video", "audio", "skip"

	// part
	ID      string        `json:"id,omitempty"`
	Message *turn.Message `json:"message,omitempty"`

	// video
	SessionID string           `json:"sessionId,omitempty"`
	Event     *videosync.Event `json:"event,omitempty"`

	// audio
	CurrentTime float64 `json:"currentTime,omitempty"`
	Ended       bool    `json:"ended,omitempty"`
}

// serverMessage is one text frame to the browser.
type serverMessage struct {
	Type  string        `json:"type"` // "frame", "consumed", "error"
	Frame *avatar.Frame `json:"frame,omitempty"`
	IDs   []string      `json:"ids,omitempty"`
	Error string        `json:"error,omitempty"`
}

// ServeHTTP upgrades the connection and runs the sync session.
// Returns 503 if at max concurrent socket capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.SyncSocketsActive.Inc()
	defer metrics.SyncSocketsActive.Dec()

	h.runSession(r.Context(), conn)
}

func (h *Handler) runSession(parent context.Context, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parent)
	ss := &syncSession{
		ctx:      ctx,
		ctrl:     avatar.NewController(h.cfg.Avatar, h.cfg.Videos),
		videos:   h.cfg.Videos,
		watching: make(map[string]func()),
	}
	defer ss.release()
	defer cancel()
	send := newSender(conn)
	socketID := uuid.NewString()
	slog.Info("sync socket opened", "socket_id", socketID)

	go func() {
		defer cancel()
		ss.readMessages(conn, send)
	}()

	runTicker(ctx, ss.ctrl, h.cfg.FPS, send)
	slog.Info("sync socket closed", "socket_id", socketID)
}

// syncSession is one socket's controller plus the video sessions it follows.
type syncSession struct {
	ctx    context.Context
	ctrl   *avatar.Controller
	videos *videosync.Registry

	mu       sync.Mutex
	watching map[string]func()
}

// watch subscribes the controller to sessionID's video events once.
func (ss *syncSession) watch(sessionID string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if _, ok := ss.watching[sessionID]; ok || ss.ctx.Err() != nil {
		return
	}
	updates, cancel := ss.videos.Subscribe(sessionID)
	ss.watching[sessionID] = cancel

	go func() {
		for {
			select {
			case <-ss.ctx.Done():
				return
			case st := <-updates:
				if ss.ctrl.ObserveVideo(st) {
					slog.Debug("video ended, session consumed", "session_id", sessionID)
				}
			}
		}
	}()
}

// release drops every subscription and forgets sessions nobody else follows.
func (ss *syncSession) release() {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for id, cancel := range ss.watching {
		cancel()
		ss.videos.Remove(id)
	}
}

// readMessages applies client frames until the connection closes.
func (ss *syncSession) readMessages(conn *websocket.Conn, send func(serverMessage) error) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			slog.Debug("sync read ended", "error", err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if err = ss.handleMessage(data); err != nil {
			slog.Warn("sync message rejected", "error", err)
			metrics.Errors.WithLabelValues("sync", "bad_message").Inc()
			send(serverMessage{Type: "error", Error: err.Error()})
		}
	}
}

func (ss *syncSession) handleMessage(data []byte) error {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	switch msg.Type {
	case "part":
		if msg.Message == nil {
			return errors.New("part without message")
		}
		id := msg.ID
		if id == "" {
			id = uuid.NewString()
		}
		p := avatar.PartFromMessage(id, *msg.Message)
		if p.Video && p.SessionID != "" {
			ss.watch(p.SessionID)
		}
		ss.ctrl.Enqueue(p)
	case "video":
		if msg.Event == nil || msg.SessionID == "" {
			return errors.New("video message needs sessionId and event")
		}
		ss.watch(msg.SessionID)
		_, err := ss.videos.Apply(msg.SessionID, *msg.Event)
		return err
	case "audio":
		ss.ctrl.ReportAudio(msg.ID, msg.CurrentTime, msg.Ended)
	case "skip":
		ss.ctrl.Skip()
	default:
		return errUnknownMessage
	}
	return nil
}

// runTicker emits one frame per tick, plus a consumed message whenever
// parts finish, until ctx is done or a write fails.
func runTicker(ctx context.Context, ctrl *avatar.Controller, fps int, send func(serverMessage) error) {
	interval := time.Second / time.Duration(fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			frame := ctrl.Tick(dt)
			if len(frame.Consumed) > 0 {
				if err := send(serverMessage{Type: "consumed", IDs: frame.Consumed}); err != nil {
					return
				}
			}
			if err := send(serverMessage{Type: "frame", Frame: &frame}); err != nil {
				return
			}
		}
	}
}

func newSender(conn *websocket.Conn) func(serverMessage) error {
	var mu sync.Mutex
	return func(msg serverMessage) error {
		mu.Lock()
		defer mu.Unlock()

		jsonBytes, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		if err = conn.WriteMessage(websocket.TextMessage, jsonBytes); err != nil {
			slog.Debug("sync write failed", "error", err)
			return err
		}
		return nil
	}
}
