package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"github.com/pankajydv07/ai-tutor/gateway/internal/metrics"
)

// OpenAICompletion requests JSON-object chat completions through openai-go.
type OpenAICompletion struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewOpenAICompletion creates a client. baseURL may be empty for the public API.
func NewOpenAICompletion(apiKey, baseURL, model string, maxTokens, poolSize int) *OpenAICompletion {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(NewPooledHTTPClient(poolSize, 120*time.Second)),
		option.WithMaxRetries(1),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompletion{
		client:      openai.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: 0.6,
	}
}

// Complete sends system+user messages and returns the first choice.
func (c *OpenAICompletion) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	start := time.Now()

	useModel := c.model
	if req.Model != "" {
		useModel = req.Model
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(useModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserMessage),
		},
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		Temperature:         openai.Float(c.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "http").Inc()
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai completion: no choices")
	}

	choice := resp.Choices[0]
	return &Completion{
		Text:      choice.Message.Content,
		Truncated: choice.FinishReason == "length",
		LatencyMs: float64(time.Since(start).Milliseconds()),
	}, nil
}
