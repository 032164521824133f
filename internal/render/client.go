// Package render drives the external scene-rendering worker: one clip per
// video part, then a combine into the turn's final video.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/pipeline"
)

// ErrWorkerFailed means the worker answered but reported success=false.
var ErrWorkerFailed = errors.New("render worker failed")

const scenePreamble = "from manim import *\nfrom math import *\n\n"

// Video is one file produced by the worker.
type Video struct {
	Path string `json:"videoPath"`
	URL  string `json:"videoUrl"`
}

// Health is the worker's self-report.
type Health struct {
	Status          string `json:"status"`
	ManimAvailable  bool   `json:"manim_available"`
	FFmpegAvailable bool   `json:"ffmpeg_available"`
}

// Worker is the rendering collaborator.
type Worker interface {
	Generate(ctx context.Context, script, messageID, audioPath string) (*Video, error)
	Combine(ctx context.Context, videoPaths []string, messageID string) (*Video, error)
	Health(ctx context.Context) (*Health, error)
	Progress(ctx context.Context, messageID string) (string, error)
}

type workerResponse struct {
	Success   bool   `json:"success"`
	VideoPath string `json:"videoPath"`
	VideoURL  string `json:"videoUrl"`
	Error     string `json:"error"`
}

// HTTPWorker talks to the worker's HTTP API.
type HTTPWorker struct {
	baseURL string
	client  *http.Client
}

// NewHTTPWorker creates a client for the worker at baseURL. Each call is
// bounded by timeout; rendering a scene can take minutes.
func NewHTTPWorker(baseURL string, timeout time.Duration, poolSize int) *HTTPWorker {
	return &HTTPWorker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  pipeline.NewPooledHTTPClient(poolSize, timeout),
	}
}

// NormalizeScript prepends the standard imports when script lacks them.
func NormalizeScript(script string) string {
	script = strings.TrimSpace(script)
	if strings.HasPrefix(script, "from manim import") {
		return script
	}
	return scenePreamble + script
}

// Generate renders one scene. audioPath, when set, is muxed into the clip.
func (w *HTTPWorker) Generate(ctx context.Context, script, messageID, audioPath string) (*Video, error) {
	body := map[string]string{
		"manimCode": NormalizeScript(script),
		"messageId": messageID,
	}
	if audioPath != "" {
		body["audioPath"] = audioPath
	}
	return w.post(ctx, "/generate-video", body)
}

// Combine concatenates videoPaths in order.
func (w *HTTPWorker) Combine(ctx context.Context, videoPaths []string, messageID string) (*Video, error) {
	return w.post(ctx, "/combine-videos", map[string]any{
		"videoPaths": videoPaths,
		"messageId":  messageID,
	})
}

func (w *HTTPWorker) post(ctx context.Context, path string, body any) (*Video, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	var res workerResponse
	if err = w.do(req, &res); err != nil {
		return nil, fmt.Errorf("worker %s: %w", path, err)
	}
	if !res.Success {
		return nil, fmt.Errorf("worker %s: %w: %s", path, ErrWorkerFailed, firstLine(res.Error))
	}
	if res.VideoPath == "" {
		return nil, fmt.Errorf("worker %s: %w: no video path", path, ErrWorkerFailed)
	}
	return &Video{Path: res.VideoPath, URL: res.VideoURL}, nil
}

// Health fetches the worker's health report.
func (w *HTTPWorker) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}
	var h Health
	if err = w.do(req, &h); err != nil {
		return nil, fmt.Errorf("worker health: %w", err)
	}
	return &h, nil
}

// Progress returns the worker's free-text progress for messageID.
func (w *HTTPWorker) Progress(ctx context.Context, messageID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/progress/"+url.PathEscape(messageID), nil)
	if err != nil {
		return "", fmt.Errorf("create progress request: %w", err)
	}
	var res struct {
		Progress string `json:"progress"`
	}
	if err = w.do(req, &res); err != nil {
		return "", fmt.Errorf("worker progress: %w", err)
	}
	return res.Progress, nil
}

func (w *HTTPWorker) do(req *http.Request, out any) error {
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
