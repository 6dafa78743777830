package mendz

import "github.com/zoobzio/capitan"

// Signals for hook events.
const (
	SynthesisStarted   = capitan.Signal("mend.synthesis.started")
	SynthesisCompleted = capitan.Signal("mend.synthesis.completed")
	SynthesisBypassed  = capitan.Signal("mend.synthesis.bypassed")
	AttemptStarted     = capitan.Signal("mend.attempt.started")
	AttemptRejected    = capitan.Signal("mend.attempt.rejected")
	DefaultApplied     = capitan.Signal("mend.fallback.default")
	ModelCallStarted   = capitan.Signal("mend.model.call.started")
	ModelCallCompleted = capitan.Signal("mend.model.call.completed")
	ModelCallFailed    = capitan.Signal("mend.model.call.failed")
)

// Keys for hook event fields.
var (
	// Synthesis identification.
	SynthesisIDKey = capitan.NewStringKey("mend.synthesis.id")
	OperationKey   = capitan.NewStringKey("mend.operation")
	AttemptKey     = capitan.NewIntKey("mend.attempt")
	MaxAttemptsKey = capitan.NewIntKey("mend.attempts.max")
	TemperatureKey = capitan.NewFloat64Key("mend.temperature")

	// Failure context.
	FailureKey = capitan.NewStringKey("mend.failure.reason")

	// Rejection details.
	RejectionPathKey = capitan.NewStringKey("mend.rejection.path")
	RejectionKey     = capitan.NewStringKey("mend.rejection")
	ErrorTypeKey     = capitan.NewStringKey("mend.error.type")

	// Outcome.
	SourceKey   = capitan.NewStringKey("mend.outcome.source")
	OutputKey   = capitan.NewStringKey("mend.output")
	ResponseKey = capitan.NewStringKey("mend.response")

	// Error information.
	ErrorKey = capitan.NewStringKey("mend.error")

	// Provider information.
	ProviderKey = capitan.NewStringKey("mend.provider")
	ModelKey    = capitan.NewStringKey("mend.model")

	// Provider metrics.
	PromptTokensKey     = capitan.NewIntKey("mend.tokens.prompt")
	CompletionTokensKey = capitan.NewIntKey("mend.tokens.completion")
	TotalTokensKey      = capitan.NewIntKey("mend.tokens.total")
	DurationMsKey       = capitan.NewIntKey("mend.duration.ms")

	// HTTP/API metadata.
	HTTPStatusCodeKey = capitan.NewIntKey("mend.http.status.code")
	APIErrorTypeKey   = capitan.NewStringKey("mend.api.error.type")
	APIErrorCodeKey   = capitan.NewStringKey("mend.api.error.code")

	// Response metadata.
	ResponseIDKey           = capitan.NewStringKey("mend.response.id")
	ResponseFinishReasonKey = capitan.NewStringKey("mend.response.finish.reason")
)
