package mendz

import (
	"fmt"
	"sync"
	"testing"
)

func TestSessionTranscript(t *testing.T) {
	session := NewSession()
	if session.ID() == "" {
		t.Error("Session should have an ID")
	}
	if session.Len() != 0 {
		t.Errorf("New session should be empty, got %d messages", session.Len())
	}

	session.Append(RoleSystem, systemPreamble)
	session.Append(RoleUser, "prompt")
	session.Append(RoleAssistant, "response")

	if session.Len() != 3 {
		t.Fatalf("Expected 3 messages, got %d", session.Len())
	}

	messages := session.Messages()
	if messages[0].Role != RoleSystem || messages[2].Role != RoleAssistant {
		t.Errorf("Unexpected transcript order: %+v", messages)
	}

	// Mutating the returned slice must not touch the transcript.
	messages[0].Content = "tampered"
	if session.Messages()[0].Content != systemPreamble {
		t.Error("Messages copy is not isolated from the session")
	}
}

func TestSessionIDUnique(t *testing.T) {
	if NewSession().ID() == NewSession().ID() {
		t.Error("Sessions should have unique IDs")
	}
}

func TestSessionClear(t *testing.T) {
	session := NewSession()
	session.Append(RoleUser, "prompt")
	session.Clear()
	if session.Len() != 0 {
		t.Errorf("Expected empty session after Clear, got %d", session.Len())
	}
}

func TestSessionUsage(t *testing.T) {
	session := NewSession()
	if session.LastUsage() != nil {
		t.Error("Expected nil usage before any call")
	}

	session.SetUsage(&TokenUsage{Prompt: 10, Completion: 5, Total: 15})
	usage := session.LastUsage()
	if usage == nil || usage.Total != 15 {
		t.Fatalf("Unexpected usage: %+v", usage)
	}

	// The returned usage is a copy.
	usage.Total = 0
	if session.LastUsage().Total != 15 {
		t.Error("Usage copy is not isolated from the session")
	}

	// nil updates are ignored.
	session.SetUsage(nil)
	if session.LastUsage() == nil {
		t.Error("nil SetUsage should not clear usage")
	}
}

func TestSessionConcurrent(t *testing.T) {
	session := NewSession()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			session.Append(RoleUser, fmt.Sprintf("message %d", n))
		}(i)
		go func() {
			defer wg.Done()
			_ = session.Messages()
			_ = session.Len()
		}()
	}
	wg.Wait()

	if session.Len() != 10 {
		t.Errorf("Expected 10 messages, got %d", session.Len())
	}
}
