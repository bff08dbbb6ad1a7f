// Package llm talks to an OpenAI-compatible chat completion backend.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/xaenox/tea-bot/internal/apperr"
	"github.com/xaenox/tea-bot/internal/models"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-3.5-turbo"
	DefaultTimeout = 30 * time.Second

	// DefaultSystemPrompt is used when no prompt file is configured.
	DefaultSystemPrompt = "You are an assistant that helps IT specialists estimate their tasks."
)

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	SystemPrompt string
}

type Client struct {
	client       *openai.Client
	model        string
	maxTokens    int
	temperature  float64
	timeout      time.Duration
	systemPrompt string
	logger       *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	if oc.BaseURL == "" {
		oc.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}

	logger.Info("LLM client initialized",
		zap.String("model", cfg.Model),
		zap.String("base_url", oc.BaseURL))

	return &Client{
		client:       openai.NewClientWithConfig(oc),
		model:        cfg.Model,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		timeout:      cfg.Timeout,
		systemPrompt: cfg.SystemPrompt,
		logger:       logger,
	}
}

// SystemPrompt returns the prompt sent ahead of every conversation.
func (c *Client) SystemPrompt() string {
	return c.systemPrompt
}

// Respond sends the system prompt, history and message to the model and
// returns the reply text. Failures are returned as *apperr.Error.
func (c *Client) Respond(ctx context.Context, history []models.Turn, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.systemPrompt,
	})
	for _, t := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: message,
	})

	c.logger.Debug("Sending request to LLM",
		zap.String("model", c.model),
		zap.Int("history", len(history)))

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
	})
	if err != nil {
		classified := classify(err)
		c.logger.Error("Failed to get LLM response",
			zap.String("code", string(classified.Code)),
			zap.Error(err))
		return "", classified
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.CodeUnexpected, "model returned no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

func classify(err error) *apperr.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.New(apperr.CodeTimeout, "model request timed out", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fromStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fromStatus(reqErr.HTTPStatusCode, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.New(apperr.CodeTimeout, "model request timed out", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || netErr != nil {
		return apperr.New(apperr.CodeConnectionFailed, "could not reach model backend", err)
	}
	return apperr.New(apperr.CodeUnexpected, "model request failed", err)
}

func fromStatus(status int, err error) *apperr.Error {
	switch {
	case status == 429:
		return apperr.New(apperr.CodeRateLimited, "model backend rate limit exceeded", err)
	case status >= 500:
		return apperr.New(apperr.CodeServerError, fmt.Sprintf("model backend returned %d", status), err)
	default:
		return apperr.New(apperr.CodeUnexpected, fmt.Sprintf("model backend returned %d", status), err)
	}
}

// LoadSystemPrompt reads a prompt file. An empty path selects the built-in
// prompt; a missing or blank file is an error.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt %s: %w", path, err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", fmt.Errorf("system prompt %s is empty", path)
	}
	return prompt, nil
}
