package llm

import (
	"context"
	"testing"
	"time"

	docerr "docrag/errors"
)

type stubBackend struct {
	kind      Kind
	responses []Response
	errs      []error
	calls     int
}

func (s *stubBackend) Kind() Kind { return s.kind }

func (s *stubBackend) Complete(ctx context.Context, req Request) (Response, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return Response{}, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return Response{}, nil
}

func TestRouterRetriesRateLimitThenSucceeds(t *testing.T) {
	backend := &stubBackend{
		kind:      KindHostedChat,
		errs:      []error{&RateLimitError{Message: "Please try again in 0m0.01s"}},
		responses: []Response{{}, {Content: "ok"}},
	}
	router := NewRouter(5, backend)

	resp, err := router.Complete(context.Background(), Request{Backend: KindHostedChat})
	if err != nil {
		t.Fatalf("expected eventual success, got error: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected content %q, got %q", "ok", resp.Content)
	}
	if backend.calls != 2 {
		t.Errorf("expected 2 calls, got %d", backend.calls)
	}
}

func TestRouterGivesUpAfterRateLimitRetriesExhausted(t *testing.T) {
	errs := make([]error, maxRateLimitRetries+1)
	for i := range errs {
		errs[i] = &RateLimitError{Message: "Please try again in 0m0.001s"}
	}
	backend := &stubBackend{kind: KindHostedChat, errs: errs}
	router := NewRouter(5, backend)

	_, err := router.Complete(context.Background(), Request{Backend: KindHostedChat})
	if err == nil {
		t.Fatal("expected RateLimited error")
	}
	if docerr.KindOf(err) != docerr.RateLimited {
		t.Errorf("expected Kind RateLimited, got %v", docerr.KindOf(err))
	}
}

func TestRouterGivesUpAfterServerErrorRetriesExhausted(t *testing.T) {
	errs := make([]error, maxServerRetries+1)
	for i := range errs {
		errs[i] = &ServerError{StatusCode: 503, Message: "unavailable"}
	}
	backend := &stubBackend{kind: KindLocalChat, errs: errs}
	router := NewRouter(5, backend)

	_, err := router.Complete(context.Background(), Request{Backend: KindLocalChat})
	if err == nil {
		t.Fatal("expected BackendUnavailable error")
	}
	if docerr.KindOf(err) != docerr.BackendUnavailable {
		t.Errorf("expected Kind BackendUnavailable, got %v", docerr.KindOf(err))
	}
}

func TestRouterUnknownBackendIsValidationError(t *testing.T) {
	router := NewRouter(5)
	_, err := router.Complete(context.Background(), Request{Backend: "nonexistent"})
	if docerr.KindOf(err) != docerr.ValidationError {
		t.Errorf("expected ValidationError, got %v", docerr.KindOf(err))
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		name string
		want Kind
		ok   bool
	}{
		{"ollama", KindLocalChat, true},
		{"local_chat", KindLocalChat, true},
		{"groq", KindHostedChat, true},
		{"completion", KindLocalCompletion, true},
		{"", "", false},
		{"gpt4all", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseKind(tc.name)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseKind(%q) = (%v, %v), want (%v, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRateLimitWaitParsesHint(t *testing.T) {
	wait, ok := rateLimitWait(&RateLimitError{Message: "Please try again in 1m30s"})
	if !ok {
		t.Fatal("expected rate limit hint to parse")
	}
	want := 90*time.Second + 500*time.Millisecond
	if wait != want {
		t.Errorf("wait = %v, want %v", wait, want)
	}
}
