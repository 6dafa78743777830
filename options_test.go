package mendz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/pipz"
)

func TestWithRetryComposes(t *testing.T) {
	synth, err := New[TestUser](
		NewMockProviderWithResponse(`{"id": 1, "name": "Ada"}`),
		WithRetry(2),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	outcome := synth.Recover(context.Background(), Call{Operation: "fetchUser", Err: errors.New("boom")})
	if outcome.Source != SourceModel {
		t.Errorf("Expected model source through retry wrapper, got %v", outcome.Source)
	}
}

func TestWithTimeout(t *testing.T) {
	slow := NewMockProviderWithCallback(func([]Message, float32) (string, error) {
		time.Sleep(500 * time.Millisecond)
		return `{"id": 1, "name": "Ada"}`, nil
	})

	synth, err := New[TestUser](slow, WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	outcome := synth.Recover(context.Background(), Call{Operation: "fetchUser", Err: errors.New("boom")})
	if outcome.Source != SourceDefault {
		t.Errorf("Expected default source on timeout, got %v", outcome.Source)
	}
}

func TestWithFallback(t *testing.T) {
	standby, err := New[TestUser](NewMockProviderWithResponse(`{"id": 7, "name": "Ada"}`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	primary := NewFailingProvider(errors.New("connection refused"))
	synth, err := New[TestUser](primary, WithFallback(standby))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	outcome := synth.Recover(context.Background(), Call{Operation: "fetchUser", Err: errors.New("boom")})
	if outcome.Source != SourceModel {
		t.Fatalf("Expected model source via fallback, got %v (rejection: %s)", outcome.Source, outcome.Rejection)
	}
	if outcome.Value.ID != 7 {
		t.Errorf("Unexpected value: %+v", outcome.Value)
	}
	if primary.Calls() == 0 {
		t.Error("Primary provider should have been tried first")
	}
}

func TestWithErrorHandler(t *testing.T) {
	var mu sync.Mutex
	var handled []string

	handler := pipz.Apply("record", func(_ context.Context, e *pipz.Error[*SynthesisRequest]) (*pipz.Error[*SynthesisRequest], error) {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, e.Err.Error())
		return e, nil
	})

	synth, err := New[TestUser](
		NewFailingProvider(errors.New("connection refused")),
		WithErrorHandler(handler),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	outcome := synth.Recover(context.Background(), Call{Operation: "fetchUser", Err: errors.New("boom")})
	if outcome.Source != SourceDefault {
		t.Errorf("Expected default source, got %v", outcome.Source)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(handled) == 0 {
		t.Error("Error handler was not invoked")
	}
}

func TestWithRateLimit(t *testing.T) {
	synth, err := New[TestUser](
		NewMockProviderWithResponse(`{"id": 1, "name": "Ada"}`),
		WithRateLimit(100, 10),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	outcome := synth.Recover(context.Background(), Call{Operation: "fetchUser", Err: errors.New("boom")})
	if outcome.Source != SourceModel {
		t.Errorf("Expected model source through rate limiter, got %v", outcome.Source)
	}
}

func TestWithCircuitBreaker(t *testing.T) {
	synth, err := New[TestUser](
		NewMockProviderWithResponse(`{"id": 1, "name": "Ada"}`),
		WithCircuitBreaker(3, time.Second),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	outcome := synth.Recover(context.Background(), Call{Operation: "fetchUser", Err: errors.New("boom")})
	if outcome.Source != SourceModel {
		t.Errorf("Expected model source through circuit breaker, got %v", outcome.Source)
	}
}
