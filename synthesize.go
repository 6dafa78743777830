package mendz

import (
	"context"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/pipz"
)

// DefaultMaxAttempts bounds the validation retry loop: structurally invalid
// responses are re-prompted with corrective context up to this many times
// before the deterministic default applies.
const DefaultMaxAttempts = 3

// Source tags where an outcome's value came from.
type Source string

// Outcome sources.
const (
	// SourceOriginal: the wrapped operation succeeded; the engine was bypassed.
	SourceOriginal Source = "original"
	// SourceModel: the value was synthesized by the model and validated.
	SourceModel Source = "model"
	// SourceDefault: attempts were exhausted (or the backend failed); the
	// value is the schema's deterministic zero instance.
	SourceDefault Source = "default"
)

// Call describes the failed operation being recovered: its identity, its
// arguments, and why it failed. Doc optionally carries the operation's
// source or documentation as extra model context.
type Call struct {
	Operation string     // Name of the failed operation
	Arguments []Argument // Ordered arguments, stringified
	Err       error      // The failure; set by Resolve when wrapping
	Reason    string     // Failure description when there is no error (missing value)
	Doc       string     // Optional source/documentation snippet
}

// failureReason resolves the textual failure description for the prompt.
func (c Call) failureReason() string {
	if c.Err != nil {
		return c.Err.Error()
	}
	if c.Reason != "" {
		return c.Reason
	}
	return "operation returned no value"
}

// Outcome is the terminal result of a synthesis. It always carries a value;
// Source distinguishes model-sourced values from the deterministic default
// and from untouched originals.
type Outcome[T any] struct {
	Value     T
	Source    Source
	Attempts  int         // Model attempts performed (0 when bypassed)
	Rejection string      // Last rejection or transport failure, "" on success
	Usage     *TokenUsage // Token usage of the last model call, if any
}

// Synthesis recovers failed operations that should have produced a T.
// Construct once per target type with New and reuse across calls; each
// recovery owns its own transcript, so concurrent use is safe.
type Synthesis[T any] struct {
	schema      *Descriptor
	schemaName  string
	schemaJSON  string
	service     *service
	maxAttempts int
	temperature float32
}

// New creates a synthesis engine for target type T bound to a provider.
// It fails only when T has no structural representation.
func New[T any](provider Provider, opts ...Option) (*Synthesis[T], error) {
	schema, err := Describe[T]()
	if err != nil {
		return nil, err
	}

	return &Synthesis[T]{
		schema:      schema,
		schemaName:  schemaName[T](),
		schemaJSON:  schema.JSONSchema(),
		service:     newService(provider, opts...),
		maxAttempts: DefaultMaxAttempts,
		temperature: DefaultTemperatureDeterministic,
	}, nil
}

// schemaName derives a short contract name from the type, for providers
// with native structured output.
func schemaName[T any]() string {
	name := reflect.TypeFor[T]().Name()
	if name == "" {
		return "response"
	}
	return strings.ToLower(name)
}

// WithMaxAttempts sets the validation retry bound. Values below 1 are
// clamped to 1.
func (s *Synthesis[T]) WithMaxAttempts(n int) *Synthesis[T] {
	if n < 1 {
		n = 1
	}
	s.maxAttempts = n
	return s
}

// WithTemperature sets the sampling temperature for model calls.
func (s *Synthesis[T]) WithTemperature(temperature float32) *Synthesis[T] {
	if temperature == TemperatureUnset || temperature == 0 {
		temperature = DefaultTemperatureDeterministic
	}
	s.temperature = temperature
	return s
}

// WithClosedSchema makes every record in the schema closed: responses
// containing unknown fields are rejected instead of tolerated.
func (s *Synthesis[T]) WithClosedSchema() *Synthesis[T] {
	s.schema = s.schema.closedCopy()
	return s
}

// GetPipeline returns the model-call pipeline for composition, e.g. as a
// WithFallback target of another engine.
func (s *Synthesis[T]) GetPipeline() pipz.Chainable[*SynthesisRequest] {
	return s.service.pipeline
}

// Resolve is the wrapped-operation boundary. When err is nil the engine is
// bypassed entirely: no schema work, no network, the original value is
// returned tagged SourceOriginal. Otherwise the failure is recovered via
// Recover. Resolve never returns an error.
func (s *Synthesis[T]) Resolve(ctx context.Context, value T, err error, call Call) Outcome[T] {
	if err == nil {
		capitan.Info(ctx, SynthesisBypassed,
			OperationKey.Field(call.Operation),
		)
		return Outcome[T]{Value: value, Source: SourceOriginal}
	}
	call.Err = err
	return s.Recover(ctx, call)
}

// ResolveMissing is Resolve for comma-ok shaped operations: lookups that
// report absence instead of an error.
func (s *Synthesis[T]) ResolveMissing(ctx context.Context, value T, ok bool, call Call) Outcome[T] {
	if ok {
		capitan.Info(ctx, SynthesisBypassed,
			OperationKey.Field(call.Operation),
		)
		return Outcome[T]{Value: value, Source: SourceOriginal}
	}
	return s.Recover(ctx, call)
}

// Wrap adapts a fallible operation into one that always yields a value.
// This is the higher-order replacement for call-site rewriting: the
// returned function runs the operation and routes any failure through the
// engine.
func (s *Synthesis[T]) Wrap(operation string, op func(context.Context) (T, error)) func(context.Context) Outcome[T] {
	return func(ctx context.Context) Outcome[T] {
		value, err := op(ctx)
		return s.Resolve(ctx, value, err, Call{Operation: operation})
	}
}

// Recover drives the synthesis state machine for one failure: compile
// prompt → invoke model → validate → materialize, retrying validation
// rejections with corrective context up to the attempt bound. Transport
// failures and cancellation skip straight to the deterministic default.
// Recover always returns a value.
func (s *Synthesis[T]) Recover(ctx context.Context, call Call) Outcome[T] {
	synthesisID := uuid.New().String()

	capitan.Info(ctx, SynthesisStarted,
		SynthesisIDKey.Field(synthesisID),
		OperationKey.Field(call.Operation),
		ProviderKey.Field(s.service.providerName),
		FailureKey.Field(call.failureReason()),
		MaxAttemptsKey.Field(s.maxAttempts),
	)

	session := NewSession()
	session.Append(RoleSystem, systemPreamble)

	var lastRejection string
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return s.defaultOutcome(ctx, synthesisID, call, attempt-1, ctx.Err().Error(), session)
		}

		prompt := compilePrompt(s.schema, call, attempt, lastRejection)
		req := &SynthesisRequest{
			Temperature: s.temperature,
			Operation:   call.Operation,
			Attempt:     attempt,
			SchemaName:  s.schemaName,
			SchemaJSON:  s.schemaJSON,
		}

		capitan.Info(ctx, AttemptStarted,
			SynthesisIDKey.Field(synthesisID),
			OperationKey.Field(call.Operation),
			AttemptKey.Field(attempt),
			TemperatureKey.Field(float64(s.temperature)),
		)

		processed, err := s.service.invoke(ctx, session, prompt, req)
		if err != nil {
			// Transport-class failure. The model client already retried
			// idempotent faults with backoff; no validation retry applies.
			capitan.Error(ctx, AttemptRejected,
				SynthesisIDKey.Field(synthesisID),
				OperationKey.Field(call.Operation),
				AttemptKey.Field(attempt),
				ErrorKey.Field(err.Error()),
				ErrorTypeKey.Field("transport"),
			)
			return s.defaultOutcome(ctx, synthesisID, call, attempt, err.Error(), session)
		}

		value, rejection := parseResponse(processed.Response)
		if rejection == nil {
			rejection = conform(value, s.schema, "")
		}
		if rejection != nil {
			lastRejection = rejection.Error()
			capitan.Error(ctx, AttemptRejected,
				SynthesisIDKey.Field(synthesisID),
				OperationKey.Field(call.Operation),
				AttemptKey.Field(attempt),
				RejectionPathKey.Field(rejection.Path),
				RejectionKey.Field(lastRejection),
				ResponseKey.Field(processed.Response),
				ErrorTypeKey.Field("validation"),
			)
			continue
		}

		result, merr := materialize[T](value, s.schema)
		if merr != nil {
			lastRejection = merr.Error()
			capitan.Error(ctx, AttemptRejected,
				SynthesisIDKey.Field(synthesisID),
				OperationKey.Field(call.Operation),
				AttemptKey.Field(attempt),
				RejectionKey.Field(lastRejection),
				ResponseKey.Field(processed.Response),
				ErrorTypeKey.Field("materialization"),
			)
			continue
		}

		capitan.Info(ctx, SynthesisCompleted,
			SynthesisIDKey.Field(synthesisID),
			OperationKey.Field(call.Operation),
			AttemptKey.Field(attempt),
			SourceKey.Field(string(SourceModel)),
			ResponseKey.Field(processed.Response),
		)

		return Outcome[T]{
			Value:    result,
			Source:   SourceModel,
			Attempts: attempt,
			Usage:    session.LastUsage(),
		}
	}

	return s.defaultOutcome(ctx, synthesisID, call, s.maxAttempts, lastRejection, session)
}

// defaultOutcome applies the terminal fallback policy: the schema's minimal
// valid zero instance, tagged SourceDefault so callers can tell it apart
// from model-sourced data.
func (s *Synthesis[T]) defaultOutcome(ctx context.Context, synthesisID string, call Call, attempts int, reason string, session *Session) Outcome[T] {
	capitan.Info(ctx, DefaultApplied,
		SynthesisIDKey.Field(synthesisID),
		OperationKey.Field(call.Operation),
		AttemptKey.Field(attempts),
		RejectionKey.Field(reason),
		SourceKey.Field(string(SourceDefault)),
	)

	return Outcome[T]{
		Value:     zeroInstance[T](s.schema),
		Source:    SourceDefault,
		Attempts:  attempts,
		Rejection: reason,
		Usage:     session.LastUsage(),
	}
}
