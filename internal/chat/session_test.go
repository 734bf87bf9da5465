package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vaani-tts/vaani/internal/openrouter"
)

// fakeCompleter records the history it was called with and replies from a
// scripted list.
type fakeCompleter struct {
	hasKey  bool
	replies []string
	errs    []error
	calls   [][]openrouter.Message
}

func (f *fakeCompleter) HasKey() bool { return f.hasKey }

func (f *fakeCompleter) Chat(ctx context.Context, messages []openrouter.Message) (string, error) {
	snapshot := make([]openrouter.Message, len(messages))
	copy(snapshot, messages)
	f.calls = append(f.calls, snapshot)

	i := len(f.calls) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return fmt.Sprintf("reply %d", i), nil
}

func TestSend_HistoryOrdering(t *testing.T) {
	f := &fakeCompleter{hasKey: true, replies: []string{"hello there", "sure"}}
	s := NewSession(f)

	if _, err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if _, err := s.Send(context.Background(), "again"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// The second upstream call must carry exactly: user "hi", assistant
	// reply, user "again" — in that order.
	if len(f.calls) != 2 {
		t.Fatalf("upstream calls = %d, want 2", len(f.calls))
	}
	second := f.calls[1]
	if len(second) != 3 {
		t.Fatalf("second call history length = %d, want 3", len(second))
	}
	want := []openrouter.Message{
		{Role: openrouter.RoleUser, Content: "hi"},
		{Role: openrouter.RoleAssistant, Content: "hello there"},
		{Role: openrouter.RoleUser, Content: "again"},
	}
	for i, m := range want {
		if second[i] != m {
			t.Errorf("history[%d] = %+v, want %+v", i, second[i], m)
		}
	}
}

func TestSend_NoAPIKey(t *testing.T) {
	s := NewSession(&fakeCompleter{hasKey: false})
	_, err := s.Send(context.Background(), "hi")
	if !errors.Is(err, openrouter.ErrNoAPIKey) {
		t.Fatalf("error = %v, want ErrNoAPIKey", err)
	}
	if len(s.History()) != 0 {
		t.Errorf("history = %v, want empty when rejected before send", s.History())
	}
}

func TestSend_FailureKeepsUserTurn(t *testing.T) {
	f := &fakeCompleter{hasKey: true, errs: []error{errors.New("rate limited")}}
	s := NewSession(f)

	if _, err := s.Send(context.Background(), "hi"); err == nil {
		t.Fatal("Send: expected error")
	}

	h := s.History()
	if len(h) != 1 || h[0].Role != openrouter.RoleUser || h[0].Content != "hi" {
		t.Errorf("history = %+v, want the failed user turn kept", h)
	}
	if s.LastResponse() != "" {
		t.Errorf("last response = %q, want empty after failure", s.LastResponse())
	}
}

func TestLastResponse(t *testing.T) {
	f := &fakeCompleter{hasKey: true, replies: []string{"first", "second"}}
	s := NewSession(f)

	s.Send(context.Background(), "a")
	s.Send(context.Background(), "b")

	if got := s.LastResponse(); got != "second" {
		t.Errorf("last response = %q, want %q", got, "second")
	}
}

func TestReset_Idempotent(t *testing.T) {
	f := &fakeCompleter{hasKey: true, replies: []string{"x"}}
	s := NewSession(f)
	s.Send(context.Background(), "hi")

	s.Reset()
	if len(s.History()) != 0 || s.LastResponse() != "" {
		t.Fatal("session not empty after reset")
	}

	s.Reset()
	if len(s.History()) != 0 || s.LastResponse() != "" {
		t.Fatal("session not empty after second reset")
	}
}

func TestHistory_ReturnsCopy(t *testing.T) {
	f := &fakeCompleter{hasKey: true, replies: []string{"x"}}
	s := NewSession(f)
	s.Send(context.Background(), "hi")

	h := s.History()
	h[0].Content = "mutated"

	if s.History()[0].Content != "hi" {
		t.Error("mutating the returned history changed the session transcript")
	}
}
