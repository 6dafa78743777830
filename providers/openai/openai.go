// Package openai implements the mendz Provider interface for the OpenAI
// chat completions API and OpenAI-compatible backends (Groq, Cerebras)
// via the BaseURL option. It supports native schema-constrained output
// through response_format json_schema.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/mendz"
)

// Provider implements the mendz Provider and StructuredProvider interfaces
// for OpenAI-compatible APIs.
type Provider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	name       string
}

// Config holds configuration for the OpenAI provider.
type Config struct {
	APIKey  string
	Model   string        // e.g. "gpt-4o", "gpt-4o-mini"
	BaseURL string        // Optional, defaults to "https://api.openai.com/v1"; set for Groq/Cerebras
	Timeout time.Duration // Optional, defaults to 30s
}

// New creates a new OpenAI-compatible provider.
func New(config Config) *Provider {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &Provider{
		apiKey:  config.APIKey,
		model:   config.Model,
		baseURL: config.BaseURL,
		name:    "openai",
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// Call sends messages to the backend and returns the response with usage stats.
func (p *Provider) Call(ctx context.Context, messages []mendz.Message, temperature float32) (*mendz.ProviderResponse, error) {
	return p.complete(ctx, messages, temperature, nil)
}

// CallStructured sends messages with a JSON schema the response must
// satisfy, using response_format json_schema. Only some models support
// structured output; others reject the request with an error status.
func (p *Provider) CallStructured(ctx context.Context, messages []mendz.Message, schemaName, schemaJSON string, temperature float32) (*mendz.ProviderResponse, error) {
	var schema json.RawMessage
	if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		return nil, fmt.Errorf("invalid schema contract: %w", err)
	}

	format := &responseFormat{Type: "json_schema"}
	format.JSONSchema = &jsonSchemaFormat{Name: schemaName, Schema: schema}
	return p.complete(ctx, messages, temperature, format)
}

func (p *Provider) complete(ctx context.Context, messages []mendz.Message, temperature float32, format *responseFormat) (*mendz.ProviderResponse, error) {
	startTime := time.Now()

	capitan.Info(ctx, mendz.ModelCallStarted,
		mendz.ProviderKey.Field(p.name),
		mendz.ModelKey.Field(p.model),
	)

	apiMessages := make([]message, len(messages))
	for i, msg := range messages {
		apiMessages[i] = message{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	requestBody := chatCompletionRequest{
		Model:          p.model,
		Messages:       apiMessages,
		Temperature:    temperature,
		ResponseFormat: format,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

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
			if errorResp.Error.Code != "" {
				fields = append(fields, mendz.APIErrorCodeKey.Field(errorResp.Error.Code))
			}
		} else {
			fields = append(fields, mendz.ErrorKey.Field(fmt.Sprintf("status %d", resp.StatusCode)))
		}

		capitan.Error(ctx, mendz.ModelCallFailed, fields...)
		return nil, backendErr
	}

	var completionResp chatCompletionResponse
	if err := json.Unmarshal(body, &completionResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(completionResp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	duration := time.Since(startTime)

	fields := []capitan.Field{
		mendz.ProviderKey.Field(p.name),
		mendz.ModelKey.Field(completionResp.Model),
		mendz.PromptTokensKey.Field(completionResp.Usage.PromptTokens),
		mendz.CompletionTokensKey.Field(completionResp.Usage.CompletionTokens),
		mendz.TotalTokensKey.Field(completionResp.Usage.TotalTokens),
		mendz.DurationMsKey.Field(int(duration.Milliseconds())),
		mendz.HTTPStatusCodeKey.Field(resp.StatusCode),
		mendz.ResponseIDKey.Field(completionResp.ID),
	}

	if completionResp.Choices[0].FinishReason != "" {
		fields = append(fields, mendz.ResponseFinishReasonKey.Field(completionResp.Choices[0].FinishReason))
	}

	capitan.Info(ctx, mendz.ModelCallCompleted, fields...)

	return &mendz.ProviderResponse{
		Content: completionResp.Choices[0].Message.Content,
		Usage: mendz.TokenUsage{
			Prompt:     completionResp.Usage.PromptTokens,
			Completion: completionResp.Usage.CompletionTokens,
			Total:      completionResp.Usage.TotalTokens,
		},
	}, nil
}

// Request/Response types for the OpenAI chat completions API

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
