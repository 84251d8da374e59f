// Package analysis runs the AI stages of the pipeline: signal detection
// over fresh ingestions and momentum analysis over open signals.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/driftwatch/driftwatch/internal/config"
	"github.com/driftwatch/driftwatch/internal/models"
)

// ModelClient abstracts the chat model so engines can be tested with fakes.
type ModelClient interface {
	// Complete sends a system+user prompt pair and returns the raw response
	// text with token accounting.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, models.TokenUsage, error)

	// Model returns the model identifier used for cost attribution.
	Model() string
}

// Observer receives model invocation records and stage outcomes. The
// metrics collector implements this.
type Observer interface {
	ObserveModelCall(action string, duration time.Duration, usage models.TokenUsage, err error)
	ObserveDetection(result models.DetectionResult)
	ObserveMomentum(result models.MomentumResult)
}

// OpenAIClient is the production ModelClient backed by the OpenAI chat API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// NewOpenAIClient creates a client from configuration.
func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}
}

// Model returns the configured model identifier.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete executes one chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, models.TokenUsage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", models.TokenUsage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", models.TokenUsage{}, fmt.Errorf("chat completion returned no choices")
	}

	usage := models.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}
