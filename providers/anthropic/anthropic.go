// Package anthropic implements the mendz Provider interface for the
// Anthropic messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/mendz"
)

// Provider implements the mendz Provider interface for the Anthropic API.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
	name       string
}

// Config holds configuration for the Anthropic provider.
type Config struct {
	APIKey    string
	Model     string        // e.g. "claude-sonnet-4-20250514", "claude-3-5-haiku-20241022"
	BaseURL   string        // Optional, defaults to "https://api.anthropic.com"
	MaxTokens int           // Optional, defaults to 4096
	Timeout   time.Duration // Optional, defaults to 30s
}

// New creates a new Anthropic provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-20241022"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 4096
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Provider{
		apiKey:    config.APIKey,
		model:     config.Model,
		baseURL:   config.BaseURL,
		maxTokens: config.MaxTokens,
		name:      "anthropic",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends messages to Anthropic and returns the response with usage stats.
func (p *Provider) Call(ctx context.Context, messages []mendz.Message, temperature float32) (*mendz.ProviderResponse, error) {
	startTime := time.Now()

	capitan.Info(ctx, mendz.ModelCallStarted,
		mendz.ProviderKey.Field(p.name),
		mendz.ModelKey.Field(p.model),
	)

	// Anthropic takes system text as a top-level field, not a message.
	var systemParts []string
	var apiMessages []message
	for _, msg := range messages {
		if msg.Role == mendz.RoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			apiMessages = append(apiMessages, message{
				Role:    msg.Role,
				Content: msg.Content,
			})
		}
	}

	requestBody := messagesRequest{
		Model:       p.model,
		Messages:    apiMessages,
		MaxTokens:   p.maxTokens,
		Temperature: temperature,
	}

	if len(systemParts) > 0 {
		requestBody.System = strings.Join(systemParts, "\n\n")
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		duration := time.Since(startTime)
		var errorResp errorResponse

		fields := []capitan.Field{
			mendz.ProviderKey.Field(p.name),
			mendz.ModelKey.Field(p.model),
			mendz.HTTPStatusCodeKey.Field(resp.StatusCode),
			mendz.DurationMsKey.Field(int(duration.Milliseconds())),
		}

		backendErr := &mendz.BackendError{Status: resp.StatusCode}
		if err := json.Unmarshal(body, &errorResp); err == nil && errorResp.Error.Message != "" {
			backendErr.Message = errorResp.Error.Message
			fields = append(fields,
				mendz.ErrorKey.Field(errorResp.Error.Message),
				mendz.APIErrorTypeKey.Field(errorResp.Error.Type),
			)
		} else {
			fields = append(fields, mendz.ErrorKey.Field(fmt.Sprintf("status %d", resp.StatusCode)))
		}

		capitan.Error(ctx, mendz.ModelCallFailed, fields...)
		return nil, backendErr
	}

	var messagesResp messagesResponse
	if err := json.Unmarshal(body, &messagesResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var content string
	for _, block := range messagesResp.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}

	if content == "" {
		return nil, fmt.Errorf("no text content in response")
	}

	duration := time.Since(startTime)

	fields := []capitan.Field{
		mendz.ProviderKey.Field(p.name),
		mendz.ModelKey.Field(messagesResp.Model),
		mendz.PromptTokensKey.Field(messagesResp.Usage.InputTokens),
		mendz.CompletionTokensKey.Field(messagesResp.Usage.OutputTokens),
		mendz.TotalTokensKey.Field(messagesResp.Usage.InputTokens + messagesResp.Usage.OutputTokens),
		mendz.DurationMsKey.Field(int(duration.Milliseconds())),
		mendz.HTTPStatusCodeKey.Field(resp.StatusCode),
		mendz.ResponseIDKey.Field(messagesResp.ID),
	}

	if messagesResp.StopReason != "" {
		fields = append(fields, mendz.ResponseFinishReasonKey.Field(messagesResp.StopReason))
	}

	capitan.Info(ctx, mendz.ModelCallCompleted, fields...)

	return &mendz.ProviderResponse{
		Content: content,
		Usage: mendz.TokenUsage{
			Prompt:     messagesResp.Usage.InputTokens,
			Completion: messagesResp.Usage.OutputTokens,
			Total:      messagesResp.Usage.InputTokens + messagesResp.Usage.OutputTokens,
		},
	}, nil
}

// Request/Response types for the Anthropic API

type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float32   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
