package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zoobzio/mendz"
)

func completionBody(content string) chatCompletionResponse {
	return chatCompletionResponse{
		ID:    "chatcmpl-test",
		Model: "gpt-4o-mini",
		Choices: []choice{
			{Message: message{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
		Usage: usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func TestProviderCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Bearer token, got %s", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}

		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o-mini" {
			t.Errorf("Expected model gpt-4o-mini, got %s", req.Model)
		}
		if req.Temperature != 0.1 {
			t.Errorf("Expected temperature 0.1, got %f", req.Temperature)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "test prompt" {
			t.Errorf("Unexpected messages: %v", req.Messages)
		}
		if req.ResponseFormat != nil {
			t.Error("Plain Call should not carry a response format")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody(`{"id": 7}`))
	}))
	defer server.Close()

	provider := New(Config{APIKey: "test-key", BaseURL: server.URL})

	resp, err := provider.Call(context.Background(), []mendz.Message{
		{Role: mendz.RoleSystem, Content: "system"},
		{Role: mendz.RoleUser, Content: "test prompt"},
	}, 0.1)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}

	if resp.Content != `{"id": 7}` {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
	if resp.Usage.Total != 15 {
		t.Errorf("Expected total tokens 15, got %d", resp.Usage.Total)
	}
}

func TestProviderCallStructured(t *testing.T) {
	schemaJSON := `{"type": "object", "properties": {"id": {"type": "integer"}}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_schema" {
			t.Fatalf("Expected json_schema response format, got %+v", req.ResponseFormat)
		}
		if req.ResponseFormat.JSONSchema.Name != "user" {
			t.Errorf("Expected schema name user, got %s", req.ResponseFormat.JSONSchema.Name)
		}
		var schema map[string]interface{}
		if err := json.Unmarshal(req.ResponseFormat.JSONSchema.Schema, &schema); err != nil {
			t.Errorf("Schema did not survive the round trip: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(completionBody(`{"id": 7}`))
	}))
	defer server.Close()

	provider := New(Config{APIKey: "test-key", BaseURL: server.URL})

	resp, err := provider.CallStructured(context.Background(), []mendz.Message{
		{Role: mendz.RoleUser, Content: "test prompt"},
	}, "user", schemaJSON, 0.1)
	if err != nil {
		t.Fatalf("CallStructured failed: %v", err)
	}
	if resp.Content != `{"id": 7}` {
		t.Errorf("Unexpected content: %q", resp.Content)
	}
}

func TestProviderCallStructuredInvalidSchema(t *testing.T) {
	provider := New(Config{APIKey: "test-key"})
	if _, err := provider.CallStructured(context.Background(), nil, "user", "not json", 0.1); err == nil {
		t.Error("Expected error for invalid schema contract")
	}
}

func TestProviderErrorHandling(t *testing.T) {
	tests := []struct {
		name         string
		statusCode   int
		responseBody string
		wantMessage  string
	}{
		{
			name:         "rate limit",
			statusCode:   http.StatusTooManyRequests,
			responseBody: `{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error", "code": "rate_limit"}}`,
			wantMessage:  "Rate limit exceeded",
		},
		{
			name:         "bad request",
			statusCode:   http.StatusBadRequest,
			responseBody: `{"error": {"message": "Invalid request", "type": "invalid_request_error"}}`,
			wantMessage:  "Invalid request",
		},
		{
			name:         "opaque failure",
			statusCode:   http.StatusInternalServerError,
			responseBody: `not json`,
			wantMessage:  "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.statusCode)
				w.Write([]byte(tc.responseBody))
			}))
			defer server.Close()

			provider := New(Config{APIKey: "test-key", BaseURL: server.URL})
			_, err := provider.Call(context.Background(), []mendz.Message{
				{Role: mendz.RoleUser, Content: "test"},
			}, 0.1)
			if err == nil {
				t.Fatal("Expected error")
			}

			if !errors.Is(err, mendz.ErrBackendRejected) {
				t.Errorf("Expected ErrBackendRejected classification, got %v", err)
			}

			var backendErr *mendz.BackendError
			if !errors.As(err, &backendErr) {
				t.Fatalf("Expected BackendError, got %T", err)
			}
			if backendErr.Status != tc.statusCode {
				t.Errorf("Expected status %d, got %d", tc.statusCode, backendErr.Status)
			}
			if backendErr.Message != tc.wantMessage {
				t.Errorf("Expected message %q, got %q", tc.wantMessage, backendErr.Message)
			}
		})
	}
}

func TestProviderEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatCompletionResponse{ID: "x"})
	}))
	defer server.Close()

	provider := New(Config{APIKey: "test-key", BaseURL: server.URL})
	if _, err := provider.Call(context.Background(), nil, 0.1); err == nil {
		t.Error("Expected error for empty choices")
	}
}

func TestProviderDefaults(t *testing.T) {
	provider := New(Config{APIKey: "test-key"})
	if provider.model != "gpt-4o-mini" {
		t.Errorf("Unexpected default model: %s", provider.model)
	}
	if provider.baseURL != "https://api.openai.com/v1" {
		t.Errorf("Unexpected default base URL: %s", provider.baseURL)
	}
	if provider.Name() != "openai" {
		t.Errorf("Unexpected name: %s", provider.Name())
	}
}
