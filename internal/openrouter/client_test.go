package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChat(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"Hello!"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "google/gemini-3-flash-preview", srv.URL)
	reply, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if reply != "Hello!" {
		t.Errorf("reply = %q, want %q", reply, "Hello!")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer key", gotAuth)
	}
	if gotReq.Model != "google/gemini-3-flash-preview" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Content != "hi" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
}

func TestChat_NoAPIKey(t *testing.T) {
	c := NewClient("", "some-model")
	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("error = %v, want ErrNoAPIKey", err)
	}
}

func TestChat_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Invalid API key"}}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("bad-key", "some-model", srv.URL)
	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Message != "Invalid API key" {
		t.Errorf("message = %q, want server message", apiErr.Message)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
}

func TestChat_APIErrorWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `not json`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key", "some-model", srv.URL)
	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Error() != "chat completion failed (HTTP 502)" {
		t.Errorf("fallback message = %q", apiErr.Error())
	}
}

func TestComplete_WrapsPromptAsUserMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Messages) != 1 {
			t.Fatalf("len(messages) = %d, want 1", len(req.Messages))
		}
		if req.Messages[0].Role != RoleUser {
			t.Errorf("role = %q, want user", req.Messages[0].Role)
		}
		if req.Messages[0].Content != "Summarize\n\nText to process:\nlong text" {
			t.Errorf("content = %q", req.Messages[0].Content)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"short"}}]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key", "some-model", srv.URL)
	out, err := c.Complete(context.Background(), "Summarize\n\nText to process:\nlong text")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "short" {
		t.Errorf("out = %q, want %q", out, "short")
	}
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("key", "some-model", srv.URL)
	if _, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("Chat: expected error on empty choices")
	}
}
