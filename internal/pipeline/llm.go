package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
)

// CompletionRequest is one structured-output completion call.
type CompletionRequest struct {
	SystemPrompt string
	UserMessage  string
	Model        string
	MaxTokens    int
}

// Completion is the raw provider output. Truncated is set when the provider
// stopped because it hit the token limit.
type Completion struct {
	Text      string  `json:"text"`
	Truncated bool    `json:"truncated"`
	LatencyMs float64 `json:"latency_ms"`
}

// CompletionProvider returns JSON text for a prompt. Errors are transport or
// status failures only; malformed JSON is the caller's concern.
type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// LLMRouter dispatches to the correct completion backend based on engine name.
type LLMRouter struct {
	*Router[CompletionProvider]
	engine string
}

// NewLLMRouter creates a router with registered backends; engine is the one
// used by Complete.
func NewLLMRouter(backends map[string]CompletionProvider, engine string) *LLMRouter {
	return &LLMRouter{Router: NewRouter(backends, engine), engine: engine}
}

// Complete routes to the configured backend and records latency metrics.
func (r *LLMRouter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	backend, err := r.Route(r.engine)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := backend.Complete(ctx, req)
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "complete").Inc()
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())
	return out, nil
}

// --- Ollama backend ---

// OllamaLLMClient requests JSON-mode chat completions from Ollama.
type OllamaLLMClient struct {
	url       string
	model     string
	maxTokens int
	client    *http.Client
}

// NewOllamaLLMClient creates an Ollama HTTP client.
func NewOllamaLLMClient(url, model string, maxTokens, poolSize int) *OllamaLLMClient {
	return &OllamaLLMClient{
		url:       url,
		model:     model,
		maxTokens: maxTokens,
		client:    NewPooledHTTPClient(poolSize, 120*time.Second),
	}
}

// Complete sends the prompt to /api/chat with format=json and no streaming.
func (c *OllamaLLMClient) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	start := time.Now()

	useModel := c.model
	if req.Model != "" {
		useModel = req.Model
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	body, err := json.Marshal(ollamaRequest{
		Model:  useModel,
		Stream: false,
		Format: "json",
		Messages: []ollamaMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserMessage},
		},
		Options: ollamaOptions{NumPredict: maxTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.url+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "http").Inc()
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.Errors.WithLabelValues("llm", "status").Inc()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, errBody)
	}

	var out ollamaResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ollama response: %w", err)
	}

	return &Completion{
		Text:      out.Message.Content,
		Truncated: out.DoneReason == "length",
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}, nil
}

type ollamaRequest struct {
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Messages []ollamaMessage `json:"messages"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict"`
}

type ollamaResponse struct {
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason"`
}
