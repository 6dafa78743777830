// Package mendz synthesizes plausible, schema-conforming replacement values
// for failed operations by delegating to an LLM.
//
// Instead of propagating an error, a wrapped operation routes its failure
// through a Synthesis engine: the target type is described as a structural
// schema, the failure context is compiled into a prompt, the model's output
// is validated against the schema, and the result is materialized into the
// caller's concrete type. Structurally invalid responses are re-prompted
// with the rejection reason up to a bounded attempt count; when attempts are
// exhausted (or the backend is unreachable) the engine returns the schema's
// deterministic zero instance instead of an error. The outcome is tagged so
// callers can always tell model-sourced values from the deterministic
// default.
//
// Basic usage:
//
//	provider := openai.New(openai.Config{APIKey: key, Model: "gpt-4o-mini"})
//	synth, _ := mendz.New[User](provider)
//	user, err := fetchUser(ctx, 42)
//	outcome := synth.Resolve(ctx, user, err, mendz.Call{
//		Operation: "fetchUser",
//		Arguments: []mendz.Argument{{Name: "id", Value: "42"}},
//	})
//	fmt.Println(outcome.Value, outcome.Source)
//
// All reliability behavior (transport backoff, timeout, circuit breaker,
// rate limiting) is composed from pipz options, and every stage emits
// capitan hooks for observability.
package mendz

import "context"

// Provider defines the interface for LLM providers.
// Providers accept conversation messages and return responses with usage stats.
type Provider interface {
	// Call sends messages to the LLM and returns the response with usage stats.
	// Messages should be in chronological order (oldest first).
	Call(ctx context.Context, messages []Message, temperature float32) (*ProviderResponse, error)

	// Name returns the provider identifier (e.g., "openai", "anthropic")
	Name() string
}

// StructuredProvider is implemented by providers that support native
// schema-constrained output (e.g. OpenAI-compatible response_format
// json_schema). When a provider implements it, the engine passes the
// schema contract alongside the messages; the schema remains embedded in
// the prompt text either way, so plain providers still work.
type StructuredProvider interface {
	Provider

	// CallStructured sends messages with a JSON schema the response must satisfy.
	CallStructured(ctx context.Context, messages []Message, schemaName, schemaJSON string, temperature float32) (*ProviderResponse, error)
}

// Validator is implemented by target types that carry invariants the
// structural schema cannot express (numeric ranges, enum membership).
// It is invoked as the final gate during materialization.
type Validator interface {
	Validate() error
}

// TokenUsage contains token counts from a provider response.
type TokenUsage struct {
	Prompt     int // Tokens used by the prompt/messages
	Completion int // Tokens used by the completion/response
	Total      int // Total tokens used
}

// ProviderResponse contains the response from an LLM provider.
type ProviderResponse struct {
	Content string     // The text response content
	Usage   TokenUsage // Token usage statistics
}

// Message represents a single message in a conversation.
type Message struct {
	Role    string // RoleUser, RoleAssistant, or RoleSystem
	Content string // The message content
}

// Role constants for message types.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Temperature constants. Synthesis is a reconstruction task, so the default
// leans deterministic; creative settings exist for callers that prefer
// varied plausible values over repeatable ones.
const (
	// TemperatureUnset indicates that no temperature has been explicitly set.
	// A zero-value float32 is also treated as unset for ergonomic struct
	// initialization.
	TemperatureUnset float32 = -1

	// TemperatureZero provides an explicitly near-zero temperature for
	// maximum determinism. Use this instead of 0.0 since zero is treated
	// as "unset".
	TemperatureZero float32 = 0.0001

	// DefaultTemperatureDeterministic is the engine default: consistent,
	// schema-faithful reconstruction with minimal variation.
	DefaultTemperatureDeterministic float32 = 0.1

	// DefaultTemperatureCreative allows more varied plausible values, at
	// the cost of more frequent structural rejections.
	DefaultTemperatureCreative float32 = 0.3
)

// SynthesisRequest flows through the pipz pipeline for a single attempt.
// It contains the compiled prompt, parameters, and response data.
type SynthesisRequest struct {
	// Input fields
	Prompt      *Prompt // The structured prompt to send to the LLM
	Temperature float32 // Temperature parameter for response generation

	// Transcript fields
	SessionID string    // ID of the synthesis transcript
	Messages  []Message // Prior attempt messages (system + earlier exchanges)

	// Metadata fields
	RequestID    string // Unique identifier for this attempt
	Operation    string // Name of the failed operation being recovered
	Attempt      int    // 1-based attempt counter
	ProviderName string // Name of the provider being used

	// Schema contract, passed to StructuredProvider implementations.
	SchemaName string // Short name for the response schema
	SchemaJSON string // JSON Schema document the response must satisfy

	// Output fields (populated by pipeline)
	Response string      // Raw text response from provider
	Usage    *TokenUsage // Token usage from provider response
}
