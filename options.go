package mendz

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/pipz"
)

// Option modifies the model-call pipeline for reliability features.
// Options compose over the built-in transport backoff.
type Option func(pipz.Chainable[*SynthesisRequest]) pipz.Chainable[*SynthesisRequest]

// WithRetry adds plain retry logic to the pipeline.
// Failed calls are retried up to maxAttempts times without delay.
func WithRetry(maxAttempts int) Option {
	return func(pipeline pipz.Chainable[*SynthesisRequest]) pipz.Chainable[*SynthesisRequest] {
		return pipz.NewRetry("retry", pipeline, maxAttempts)
	}
}

// WithBackoff adds retry logic with exponential backoff to the pipeline.
// The delay starts at baseDelay and doubles after each failure.
func WithBackoff(maxAttempts int, baseDelay time.Duration) Option {
	return func(pipeline pipz.Chainable[*SynthesisRequest]) pipz.Chainable[*SynthesisRequest] {
		return pipz.NewBackoff("backoff", pipeline, maxAttempts, baseDelay)
	}
}

// WithTimeout adds timeout protection to the pipeline.
// Model calls exceeding this duration are canceled and surface as ErrTimeout.
func WithTimeout(duration time.Duration) Option {
	return func(pipeline pipz.Chainable[*SynthesisRequest]) pipz.Chainable[*SynthesisRequest] {
		return pipz.NewTimeout("timeout", pipeline, duration)
	}
}

// WithCircuitBreaker adds circuit breaker protection to the pipeline.
// After 'failures' consecutive failures, the circuit opens for 'recovery' duration.
func WithCircuitBreaker(failures int, recovery time.Duration) Option {
	return func(pipeline pipz.Chainable[*SynthesisRequest]) pipz.Chainable[*SynthesisRequest] {
		return pipz.NewCircuitBreaker("circuit-breaker", pipeline, failures, recovery)
	}
}

// WithRateLimit adds rate limiting to the pipeline.
// rps = requests per second, burst = burst capacity.
func WithRateLimit(rps float64, burst int) Option {
	return func(pipeline pipz.Chainable[*SynthesisRequest]) pipz.Chainable[*SynthesisRequest] {
		rateLimiter := pipz.NewRateLimiter[*SynthesisRequest]("rate-limit", rps, burst)
		return pipz.NewSequence("rate-limited", rateLimiter, pipeline)
	}
}

// WithErrorHandler adds error handling to the pipeline.
// The error handler receives error context and can process/log/alert as needed.
func WithErrorHandler(handler pipz.Chainable[*pipz.Error[*SynthesisRequest]]) Option {
	return func(pipeline pipz.Chainable[*SynthesisRequest]) pipz.Chainable[*SynthesisRequest] {
		return pipz.NewHandle("error-handler", pipeline, handler)
	}
}

// PipelineProvider is implemented by types that can provide a model-call
// pipeline for composition.
type PipelineProvider interface {
	GetPipeline() pipz.Chainable[*SynthesisRequest]
}

// WithFallback adds a fallback pipeline for resilience.
// If the primary provider fails, the fallback engine's pipeline is tried.
func WithFallback(fallback PipelineProvider) Option {
	return func(pipeline pipz.Chainable[*SynthesisRequest]) pipz.Chainable[*SynthesisRequest] {
		return pipz.NewFallback("with-fallback", pipeline, fallback.GetPipeline())
	}
}

// WithDebug adds debug logging that prints the prompt and raw response.
// Useful for troubleshooting what the model sees and returns per attempt.
func WithDebug() Option {
	return func(pipeline pipz.Chainable[*SynthesisRequest]) pipz.Chainable[*SynthesisRequest] {
		debugger := pipz.Apply("debug", func(ctx context.Context, req *SynthesisRequest) (*SynthesisRequest, error) {
			fmt.Printf("\n=== DEBUG: Attempt %d Prompt ===\n", req.Attempt)
			fmt.Println(req.Prompt.Render())
			fmt.Println("===============================")

			processed, err := pipeline.Process(ctx, req)
			if err != nil {
				fmt.Printf("\n=== DEBUG: Error ===\n%v\n==================\n\n", err)
				return processed, err
			}

			fmt.Println("\n=== DEBUG: Raw Response ===")
			fmt.Println(processed.Response)
			fmt.Println("===========================")

			return processed, nil
		})
		return debugger
	}
}
