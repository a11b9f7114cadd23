package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/FranksOps/deepsearch/internal/metrics"
)

const DefaultModel = "gpt-4o-mini"

// OpenAIConfig holds the settings for an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// Model is used when a Request leaves it empty.
	Model  string
	Logger *slog.Logger
}

// OpenAI completes prompts through any OpenAI-compatible API.
type OpenAI struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates a Completer. An empty BaseURL targets api.openai.com.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OpenAI{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model, logger: cfg.Logger}
}

func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
	metrics.CompletionDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("response has no choices")
	}
	metrics.CompletionRequestsTotal.WithLabelValues(model, metrics.Outcome(err)).Inc()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrCompletion, model, describe(err))
	}

	o.logger.Debug("completion finished", "model", model, "finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens, "completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

// describe flattens OpenAI API errors into a status-bearing message.
func describe(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("request error %d: %w", reqErr.HTTPStatusCode, err)
	}
	return err
}
