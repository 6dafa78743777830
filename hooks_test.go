package mendz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/capitan"
)

// waitFor blocks until wg is done or the deadline expires.
func waitFor(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for hook")
	}
}

// TestSynthesisStartedHook verifies that synthesis.started is emitted with all fields.
func TestSynthesisStartedHook(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var synthesisID string
	var operation string
	var provider string
	var failure string
	var maxAttempts int

	wg.Add(1)
	listener := capitan.Hook(SynthesisStarted, func(_ context.Context, e *capitan.Event) {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		synthesisID, _ = SynthesisIDKey.From(e)
		operation, _ = OperationKey.From(e)
		provider, _ = ProviderKey.From(e)
		failure, _ = FailureKey.From(e)
		maxAttempts, _ = MaxAttemptsKey.From(e)
	})
	defer listener.Close()

	synth, err := New[TestUser](NewMockProviderWithResponse(`{"id": 1, "name": "Ada"}`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	synth.Recover(context.Background(), Call{Operation: "fetchUser", Err: errors.New("not found")})

	waitFor(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if synthesisID == "" {
		t.Error("Synthesis ID was not set in hook")
	}
	if operation != "fetchUser" {
		t.Errorf("Expected operation 'fetchUser', got %q", operation)
	}
	if provider != "mock-fixed" {
		t.Errorf("Expected provider 'mock-fixed', got %q", provider)
	}
	if failure != "not found" {
		t.Errorf("Expected failure 'not found', got %q", failure)
	}
	if maxAttempts != DefaultMaxAttempts {
		t.Errorf("Expected max attempts %d, got %d", DefaultMaxAttempts, maxAttempts)
	}
}

// TestAttemptRejectedHook verifies rejection events carry the path and type.
func TestAttemptRejectedHook(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var rejectionPath string
	var errorType string
	var attempt int

	wg.Add(1)
	var once sync.Once
	listener := capitan.Hook(AttemptRejected, func(_ context.Context, e *capitan.Event) {
		once.Do(func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			rejectionPath, _ = RejectionPathKey.From(e)
			errorType, _ = ErrorTypeKey.From(e)
			attempt, _ = AttemptKey.From(e)
		})
	})
	defer listener.Close()

	provider := NewScriptedProvider(
		`{"id": "seven", "name": "Ada"}`,
		`{"id": 7, "name": "Ada"}`,
	)
	synth, err := New[TestUser](provider)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	synth.Recover(context.Background(), Call{Operation: "fetchUser", Err: errors.New("boom")})

	waitFor(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if rejectionPath != "id" {
		t.Errorf("Expected rejection path 'id', got %q", rejectionPath)
	}
	if errorType != "validation" {
		t.Errorf("Expected error type 'validation', got %q", errorType)
	}
	if attempt != 1 {
		t.Errorf("Expected attempt 1, got %d", attempt)
	}
}

// TestDefaultAppliedHook verifies the terminal fallback emits its event.
func TestDefaultAppliedHook(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var source string
	var rejection string

	wg.Add(1)
	listener := capitan.Hook(DefaultApplied, func(_ context.Context, e *capitan.Event) {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		source, _ = SourceKey.From(e)
		rejection, _ = RejectionKey.From(e)
	})
	defer listener.Close()

	synth, err := New[TestUser](NewFailingProvider(errors.New("connection refused")))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	synth.Recover(context.Background(), Call{Operation: "fetchUser", Err: errors.New("boom")})

	waitFor(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if source != string(SourceDefault) {
		t.Errorf("Expected source 'default', got %q", source)
	}
	if rejection == "" {
		t.Error("Expected rejection reason in default event")
	}
}

// TestSynthesisCompletedHook verifies completion events carry the source.
func TestSynthesisCompletedHook(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var source string
	var attempt int

	wg.Add(1)
	listener := capitan.Hook(SynthesisCompleted, func(_ context.Context, e *capitan.Event) {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		source, _ = SourceKey.From(e)
		attempt, _ = AttemptKey.From(e)
	})
	defer listener.Close()

	synth, err := New[TestUser](NewMockProviderWithResponse(`{"id": 1, "name": "Ada"}`))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	synth.Recover(context.Background(), Call{Operation: "fetchUser", Err: errors.New("boom")})

	waitFor(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if source != string(SourceModel) {
		t.Errorf("Expected source 'model', got %q", source)
	}
	if attempt != 1 {
		t.Errorf("Expected attempt 1, got %d", attempt)
	}
}

// TestSynthesisBypassedHook verifies the bypass path emits its event.
func TestSynthesisBypassedHook(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var operation string

	wg.Add(1)
	listener := capitan.Hook(SynthesisBypassed, func(_ context.Context, e *capitan.Event) {
		defer wg.Done()
		mu.Lock()
		defer mu.Unlock()
		operation, _ = OperationKey.From(e)
	})
	defer listener.Close()

	synth, err := New[TestUser](NewFailingProvider(errors.New("unused")))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	synth.Resolve(context.Background(), TestUser{ID: 1}, nil, Call{Operation: "fetchUser"})

	waitFor(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	if operation != "fetchUser" {
		t.Errorf("Expected operation 'fetchUser', got %q", operation)
	}
}
