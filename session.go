package mendz

import (
	"sync"

	"github.com/google/uuid"
)

// Session holds the transcript of one synthesis: the system preamble, each
// attempt's prompt, and each model response. Retries see the full
// transcript, so a corrective message references the response it corrects.
//
// Sessions are safe for concurrent use by multiple goroutines, though each
// synthesis owns its session exclusively.
type Session struct {
	id        string
	messages  []Message
	lastUsage *TokenUsage
	mu        sync.RWMutex
}

// NewSession creates a new transcript with a unique ID.
func NewSession() *Session {
	return &Session{
		id:       uuid.New().String(),
		messages: make([]Message, 0),
	}
}

// ID returns the unique identifier for this session.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Messages returns a copy of all messages in the session.
// The returned slice is a copy and safe to modify without affecting the session.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages := make([]Message, len(s.messages))
	copy(messages, s.messages)
	return messages
}

// Append adds a new message to the transcript.
func (s *Session) Append(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, Message{
		Role:    role,
		Content: content,
	})
}

// Len returns the number of messages in the session.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Clear removes all messages from the session.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = make([]Message, 0)
}

// LastUsage returns the token usage from the most recent provider call.
// Returns nil if no calls have been made yet.
func (s *Session) LastUsage() *TokenUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastUsage == nil {
		return nil
	}
	usage := *s.lastUsage
	return &usage
}

// SetUsage updates the session's last usage statistics.
func (s *Session) SetUsage(usage *TokenUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if usage != nil {
		u := *usage
		s.lastUsage = &u
	}
}
