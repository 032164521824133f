package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaLLMClient_Truncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json", req.Format)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "Explain gravity", req.Messages[1].Content)

		io.WriteString(w, `{"message":{"role":"assistant","content":"{\"messages\":[{\"text\":\"Grav"},"done":true,"done_reason":"length"}`)
	}))
	defer srv.Close()

	c := NewOllamaLLMClient(srv.URL, "llama3.2:3b", 512, 2)
	out, err := c.Complete(context.Background(), CompletionRequest{SystemPrompt: "sys", UserMessage: "Explain gravity"})
	require.NoError(t, err)
	assert.True(t, out.Truncated)
	assert.Contains(t, out.Text, `"Grav`)
}

func TestOllamaLLMClient_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewOllamaLLMClient(srv.URL, "missing", 512, 2)
	_, err := c.Complete(context.Background(), CompletionRequest{UserMessage: "hi"})
	assert.ErrorContains(t, err, "ollama status 404")
}

func TestOpenAICompletion_FinishReasonLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "length",
				"message": {"role": "assistant", "content": "{\"messages\": [{\"text\": \"Hi"}
			}]
		}`)
	}))
	defer srv.Close()

	c := NewOpenAICompletion("test-key", srv.URL+"/", "gpt-4o-mini", 256, 2)
	out, err := c.Complete(context.Background(), CompletionRequest{SystemPrompt: "sys", UserMessage: "hi"})
	require.NoError(t, err)
	assert.True(t, out.Truncated)
	assert.Equal(t, `{"messages": [{"text": "Hi`, out.Text)
}

func TestLLMRouter_NoBackend(t *testing.T) {
	r := NewLLMRouter(map[string]CompletionProvider{}, "openai")
	_, err := r.Complete(context.Background(), CompletionRequest{})
	assert.ErrorIs(t, err, ErrNoBackend)
}
