package mendz

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/pipz"
)

// Transport retry policy. Transport-level faults (timeouts, connection
// failures, backend error statuses) are retried here with exponential
// backoff before surfacing; validation-level retries are driven by the
// orchestrator issuing a fresh invoke.
const (
	transportAttempts = 3
	transportBaseDelay = 200 * time.Millisecond
)

// newTerminal creates the terminal processor that calls the provider with
// the transcript messages plus the rendered prompt. Providers implementing
// StructuredProvider additionally receive the schema contract.
func newTerminal(provider Provider) pipz.Chainable[*SynthesisRequest] {
	return pipz.Apply("model-call", func(ctx context.Context, req *SynthesisRequest) (*SynthesisRequest, error) {
		messages := make([]Message, len(req.Messages)+1)
		copy(messages, req.Messages)
		messages[len(messages)-1] = Message{
			Role:    RoleUser,
			Content: req.Prompt.Render(),
		}

		var resp *ProviderResponse
		var err error
		if structured, ok := provider.(StructuredProvider); ok && req.SchemaJSON != "" {
			resp, err = structured.CallStructured(ctx, messages, req.SchemaName, req.SchemaJSON, req.Temperature)
		} else {
			resp, err = provider.Call(ctx, messages, req.Temperature)
		}
		if err != nil {
			return req, classifyTransport(err)
		}

		req.Response = resp.Content
		req.Usage = &resp.Usage
		return req, nil
	})
}

// classifyTransport maps a provider error into the transport taxonomy:
// ErrTimeout, ErrBackendRejected, or ErrUnreachable. Cancellation passes
// through untouched so the orchestrator can stop without further retries.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	if errors.Is(err, ErrBackendRejected) || errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout) {
		return err
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// service runs single synthesis attempts through the model-call pipeline.
// It holds no per-attempt state.
type service struct {
	pipeline     pipz.Chainable[*SynthesisRequest]
	providerName string
}

// newService builds the attempt pipeline: the provider terminal wrapped in
// transport backoff, then any caller options composed on top.
func newService(provider Provider, opts ...Option) *service {
	var pipeline pipz.Chainable[*SynthesisRequest] = pipz.NewBackoff(
		"transport-backoff", newTerminal(provider), transportAttempts, transportBaseDelay)

	for _, opt := range opts {
		pipeline = opt(pipeline)
	}

	return &service{
		pipeline:     pipeline,
		providerName: provider.Name(),
	}
}

// invoke runs one attempt. The returned request carries the raw response
// and usage on success; the error is one of the transport taxonomy (or a
// context error) on failure.
func (s *service) invoke(ctx context.Context, session *Session, prompt *Prompt, req *SynthesisRequest) (*SynthesisRequest, error) {
	if err := prompt.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prompt: %w", err)
	}

	req.Prompt = prompt
	req.RequestID = uuid.New().String()
	req.SessionID = session.ID()
	req.Messages = session.Messages()
	req.ProviderName = s.providerName

	processed, err := s.pipeline.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	if processed.Response == "" {
		return nil, fmt.Errorf("%w: empty response", ErrBackendRejected)
	}

	// Transcript is only extended after a successful round trip, so
	// transport retries never corrupt it.
	session.Append(RoleUser, prompt.Render())
	session.Append(RoleAssistant, processed.Response)
	session.SetUsage(processed.Usage)

	return processed, nil
}
