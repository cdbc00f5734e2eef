package litellm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/blipee-dev/agentcore/internal/port/completion"
	"github.com/blipee-dev/agentcore/internal/resilience"
)

// Compile-time interface check.
var _ completion.Completer = (*Client)(nil)

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"role": "assistant", "content": "all clear"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", time.Second)
	resp, err := c.Complete(context.Background(), completion.Request{
		Model:  "gpt-4o-mini",
		Prompt: "summarize the last meter reading window",
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "all clear" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("usage = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	if _, err := c.Complete(context.Background(), completion.Request{Model: "m", Prompt: "p"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestCompleteBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", time.Second)
	c.SetBreaker(resilience.NewBreaker(2, time.Minute))

	req := completion.Request{Model: "m", Prompt: "p"}
	for range 2 {
		if _, err := c.Complete(context.Background(), req); err == nil {
			t.Fatal("expected error from 502")
		}
	}

	_, err := c.Complete(context.Background(), req)
	if err == nil {
		t.Fatal("expected breaker to reject")
	}
}
