// Package chat maintains an ordered multi-turn conversation with the chat
// completion API and keeps the last assistant reply around for reuse as
// text-to-speech input.
package chat

import (
	"context"
	"sync"

	"github.com/vaani-tts/vaani/internal/openrouter"
)

// Completer abstracts the chat completion client.
type Completer interface {
	HasKey() bool
	Chat(ctx context.Context, messages []openrouter.Message) (string, error)
}

// Session holds one conversation transcript. Turns are strictly ordered: the
// history sent upstream always reflects every previously appended turn, and
// no two Send calls interleave their network requests.
type Session struct {
	mu       sync.Mutex
	client   Completer
	messages []openrouter.Message
	last     string
}

// NewSession creates an empty Session backed by the given client.
func NewSession(client Completer) *Session {
	return &Session{client: client}
}

// Send appends the user message, sends the full transcript upstream and
// appends the assistant reply, returning it. When the upstream call fails the
// user message stays in the transcript — the failed turn remains visible —
// and no assistant turn is recorded.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.client.HasKey() {
		return "", openrouter.ErrNoAPIKey
	}

	s.messages = append(s.messages, openrouter.Message{Role: openrouter.RoleUser, Content: message})

	reply, err := s.client.Chat(ctx, s.messages)
	if err != nil {
		return "", err
	}

	s.messages = append(s.messages, openrouter.Message{Role: openrouter.RoleAssistant, Content: reply})
	s.last = reply
	return reply, nil
}

// History returns a copy of the transcript in append order.
func (s *Session) History() []openrouter.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]openrouter.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LastResponse returns the most recent assistant reply, or "" when the
// session has none.
func (s *Session) LastResponse() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Reset clears the transcript and the stored last reply as a unit.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.last = ""
}
