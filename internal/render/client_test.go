package render

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScript(t *testing.T) {
	assert.Equal(t, scenePreamble+"class GenScene(Scene): pass", NormalizeScript("  class GenScene(Scene): pass\n"))
	own := "from manim import *\nclass GenScene(Scene): pass"
	assert.Equal(t, own, NormalizeScript(own))
}

func TestHTTPWorkerGenerate(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate-video", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"videoPath": "/data/videos/video_s1_part_1.mp4",
			"videoUrl":  "http://localhost:3001/videos/video_s1_part_1.mp4",
		})
	}))
	defer srv.Close()

	w := NewHTTPWorker(srv.URL+"/", 5*time.Second, 2)
	v, err := w.Generate(context.Background(), "class GenScene(Scene): pass", "s1_part_1", "/data/audio/s1_part_1.wav")
	require.NoError(t, err)
	assert.Equal(t, "/data/videos/video_s1_part_1.mp4", v.Path)
	assert.Equal(t, "s1_part_1", got["messageId"])
	assert.Equal(t, "/data/audio/s1_part_1.wav", got["audioPath"])
	assert.Contains(t, got["manimCode"], "from manim import *")
}

func TestHTTPWorkerReportsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Manim generation failed:\nSTDOUT: ...",
		})
	}))
	defer srv.Close()

	w := NewHTTPWorker(srv.URL, 5*time.Second, 2)
	_, err := w.Combine(context.Background(), []string{"a.mp4"}, "s1")
	require.ErrorIs(t, err, ErrWorkerFailed)
	assert.Contains(t, err.Error(), "Manim generation failed:")
	assert.NotContains(t, err.Error(), "STDOUT")
}

func TestHTTPWorkerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewHTTPWorker(srv.URL, 5*time.Second, 2)
	_, err := w.Generate(context.Background(), "x", "id", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrWorkerFailed)
	assert.Contains(t, err.Error(), "status 500")
}

func TestHTTPWorkerHealthAndProgress(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy","manim_available":true,"ffmpeg_available":false}`))
	})
	mux.HandleFunc("GET /progress/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"progress": "Rendering " + r.PathValue("id")})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	w := NewHTTPWorker(srv.URL, 5*time.Second, 2)
	h, err := w.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.True(t, h.ManimAvailable)
	assert.False(t, h.FFmpegAvailable)

	p, err := w.Progress(context.Background(), "s1_part_2")
	require.NoError(t, err)
	assert.Equal(t, "Rendering s1_part_2", p)
}
