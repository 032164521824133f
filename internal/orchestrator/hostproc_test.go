package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProberStatusAll(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	reg := NewRegistry(map[string]ServiceMeta{
		"render-worker": {Category: "render", HealthURL: up.URL + "/health"},
		"piper":         {Category: "tts", HealthURL: down.URL},
		"rhubarb":       {Category: "lipsync", Binary: "rhubarb"},
		"ffmpeg":        {Category: "lipsync", Binary: "ffmpeg"},
		"redis":         {Category: "session"},
	})
	p := NewProber(reg)
	p.lookPath = func(name string) (string, error) {
		if name == "ffmpeg" {
			return "/usr/bin/ffmpeg", nil
		}
		return "", errors.New("executable file not found in $PATH")
	}

	infos, err := p.StatusAll(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 5)

	byName := map[string]ServiceInfo{}
	for _, i := range infos {
		byName[i.Name] = i
	}
	assert.Equal(t, "ffmpeg", infos[0].Name, "sorted by name")
	assert.Equal(t, StatusHealthy, byName["render-worker"].Status)
	assert.Equal(t, StatusUnreachable, byName["piper"].Status)
	assert.Equal(t, "status 503", byName["piper"].Detail)
	assert.Equal(t, StatusMissing, byName["rhubarb"].Status)
	assert.Equal(t, StatusHealthy, byName["ffmpeg"].Status)
	assert.Equal(t, StatusUnknown, byName["redis"].Status)
}

func TestProberUnknownService(t *testing.T) {
	p := NewProber(NewRegistry(nil))
	_, err := p.Status(context.Background(), "nope")
	assert.Error(t, err)
}
