package mendz

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
)

// MockProvider simulates model behavior for testing. It reads the schema
// contract out of the prompt and answers with a deterministic instance
// that satisfies it.
type MockProvider struct {
	name      string
	available bool
}

// NewMockProvider creates a new mock provider for testing.
func NewMockProvider() *MockProvider {
	return &MockProvider{name: "mock", available: true}
}

// NewMockProviderWithName creates a new mock provider with a specific name.
func NewMockProviderWithName(name string) *MockProvider {
	return &MockProvider{name: name, available: true}
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string {
	return m.name
}

// SetAvailable sets the availability status (for testing transport failures).
func (m *MockProvider) SetAvailable(available bool) {
	m.available = available
}

// Call answers with a deterministic schema-satisfying response.
func (m *MockProvider) Call(_ context.Context, messages []Message, _ float32) (*ProviderResponse, error) {
	if !m.available {
		return nil, ErrUnreachable
	}

	var prompt string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			prompt = messages[i].Content
			break
		}
	}

	return &ProviderResponse{
		Content: m.generateResponse(prompt),
		Usage:   TokenUsage{Prompt: len(prompt) / 4, Completion: 16, Total: len(prompt)/4 + 16},
	}, nil
}

// generateResponse builds an instance of the schema embedded in the prompt.
func (*MockProvider) generateResponse(prompt string) string {
	const marker = "Return JSON matching this schema:\n"
	idx := strings.Index(prompt, marker)
	if idx < 0 {
		return "{}"
	}
	schemaText := prompt[idx+len(marker):]
	if end := strings.Index(schemaText, "\n\nConstraints:"); end >= 0 {
		schemaText = schemaText[:end]
	}

	var schemaDoc map[string]interface{}
	if err := json.Unmarshal([]byte(schemaText), &schemaDoc); err != nil {
		return "{}"
	}

	instance := instantiateSchema(schemaDoc)
	jsonBytes, err := json.Marshal(instance)
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}

// instantiateSchema produces a deterministic value satisfying a JSON
// Schema document (the subset Descriptor.JSONSchema emits).
func instantiateSchema(doc map[string]interface{}) interface{} {
	switch doc["type"] {
	case "boolean":
		return true
	case "integer":
		return 1
	case "number":
		return 1.0
	case "string":
		return "mock"
	case "array":
		return []interface{}{}
	case "object":
		properties, ok := doc["properties"].(map[string]interface{})
		if !ok {
			return map[string]interface{}{}
		}
		instance := make(map[string]interface{}, len(properties))
		for name, prop := range properties {
			propDoc, ok := prop.(map[string]interface{})
			if !ok {
				continue
			}
			instance[name] = instantiateSchema(propDoc)
		}
		return instance
	default:
		return nil
	}
}

// NewMockProviderWithResponse creates a mock that always returns a specific response.
func NewMockProviderWithResponse(response string) Provider {
	return &mockProviderFixed{response: response}
}

// mockProviderFixed always returns a fixed response.
type mockProviderFixed struct {
	response string
}

func (m *mockProviderFixed) Call(_ context.Context, _ []Message, _ float32) (*ProviderResponse, error) {
	return &ProviderResponse{Content: m.response}, nil
}

func (*mockProviderFixed) Name() string {
	return "mock-fixed"
}

// NewMockProviderWithCallback creates a mock that calls a function to generate responses.
func NewMockProviderWithCallback(callback func(messages []Message, temperature float32) (string, error)) Provider {
	return &mockProviderCallback{callback: callback}
}

// mockProviderCallback uses a callback to generate responses.
type mockProviderCallback struct {
	callback func([]Message, float32) (string, error)
}

func (m *mockProviderCallback) Call(_ context.Context, messages []Message, temperature float32) (*ProviderResponse, error) {
	content, err := m.callback(messages, temperature)
	if err != nil {
		return nil, err
	}
	return &ProviderResponse{Content: content}, nil
}

func (*mockProviderCallback) Name() string {
	return "mock-callback"
}

// ScriptedProvider returns a fixed sequence of responses, one per call,
// sticking at the last. Useful for exercising the validation retry loop.
type ScriptedProvider struct {
	responses []string
	calls     atomic.Int64
}

// NewScriptedProvider creates a mock that plays back responses in order.
func NewScriptedProvider(responses ...string) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

// Name returns the provider identifier.
func (*ScriptedProvider) Name() string {
	return "mock-scripted"
}

// Calls returns how many times the provider has been invoked.
func (s *ScriptedProvider) Calls() int {
	return int(s.calls.Load())
}

// Call returns the next scripted response.
func (s *ScriptedProvider) Call(_ context.Context, _ []Message, _ float32) (*ProviderResponse, error) {
	n := int(s.calls.Add(1)) - 1
	if len(s.responses) == 0 {
		return &ProviderResponse{Content: ""}, nil
	}
	if n >= len(s.responses) {
		n = len(s.responses) - 1
	}
	return &ProviderResponse{Content: s.responses[n]}, nil
}

// FailingProvider fails every call with a fixed error.
type FailingProvider struct {
	err   error
	calls atomic.Int64
}

// NewFailingProvider creates a mock whose calls always fail with err.
func NewFailingProvider(err error) *FailingProvider {
	return &FailingProvider{err: err}
}

// Name returns the provider identifier.
func (*FailingProvider) Name() string {
	return "mock-failing"
}

// Calls returns how many times the provider has been invoked.
func (f *FailingProvider) Calls() int {
	return int(f.calls.Load())
}

// Call always fails.
func (f *FailingProvider) Call(_ context.Context, _ []Message, _ float32) (*ProviderResponse, error) {
	f.calls.Add(1)
	return nil, f.err
}
