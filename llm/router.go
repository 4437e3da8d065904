// Package llm implements the LLM Router (C6): one uniform call abstracting
// three backend kinds. Grounded on llmclient/client.go's Chat method (the
// HTTP plumbing, retry loop, and backoffSleep shape), generalized from a
// single llama.cpp target to a {backend, model} dispatch table and the
// rate-limit-hint parsing spec.md §4.6 requires.
package llm

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/semaphore"

	docerr "docrag/errors"
)

// Kind names one of the three backend shapes the router dispatches to.
type Kind string

const (
	KindLocalChat       Kind = "local_chat"       // OpenAI-compatible /v1/chat/completions
	KindLocalCompletion Kind = "local_completion" // prompt-completion host API
	KindHostedChat      Kind = "hosted_chat"      // hosted chat API with rate limits
)

// ParseKind resolves a caller-facing backend name (the llm_name values the
// HTTP surface accepts, "ollama"/"groq" style) to a Kind. The canonical
// Kind strings parse to themselves.
func ParseKind(name string) (Kind, bool) {
	switch Kind(name) {
	case KindLocalChat, KindLocalCompletion, KindHostedChat:
		return Kind(name), true
	}
	switch name {
	case "ollama", "local":
		return KindLocalChat, true
	case "llamacpp", "completion":
		return KindLocalCompletion, true
	case "groq", "hosted":
		return KindHostedChat, true
	}
	return "", false
}

// Request is the uniform call shape every backend accepts.
type Request struct {
	Backend      Kind
	Model        string
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
}

// Usage reports token accounting and latency for one completed call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	DurationMS       int64
}

// Response is the uniform result shape every backend returns.
type Response struct {
	Content string
	Usage   Usage
	Backend Kind
	Model   string
}

// Backend is one concrete LLM transport the router dispatches Request to.
type Backend interface {
	Kind() Kind
	Complete(ctx context.Context, req Request) (Response, error)
}

const (
	maxRateLimitRetries = 5
	maxServerRetries    = 3
	backoffBase         = 500 * time.Millisecond
	backoffFactor       = 2
	backoffJitterRatio  = 0.2
)

// Router dispatches a Request to the backend named in req.Backend, applying
// the rate-limit and 5xx retry policies from spec.md §4.6 uniformly across
// every registered backend. Concurrent calls across all backends are
// capped at maxWorkers; excess callers queue on the semaphore.
type Router struct {
	backends map[Kind]Backend
	sem      *semaphore.Weighted
}

func NewRouter(maxWorkers int, backends ...Backend) *Router {
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	r := &Router{
		backends: make(map[Kind]Backend, len(backends)),
		sem:      semaphore.NewWeighted(int64(maxWorkers)),
	}
	for _, b := range backends {
		r.backends[b.Kind()] = b
	}
	return r
}

func (r *Router) Complete(ctx context.Context, req Request) (Response, error) {
	backend, ok := r.backends[req.Backend]
	if !ok {
		return Response{}, docerr.New(docerr.ValidationError, fmt.Sprintf("no backend registered for %q", req.Backend))
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Response{}, err
	}
	defer r.sem.Release(1)

	rateLimitAttempts := 0
	serverAttempts := 0
	for {
		resp, err := backend.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		if wait, isRateLimit := rateLimitWait(err); isRateLimit {
			rateLimitAttempts++
			if rateLimitAttempts > maxRateLimitRetries {
				return Response{}, docerr.New(docerr.RateLimited, "backend rate limit retries exhausted")
			}
			if sleepErr := sleepOrCancel(ctx, wait); sleepErr != nil {
				return Response{}, sleepErr
			}
			continue
		}

		if isServerError(err) {
			serverAttempts++
			if serverAttempts > maxServerRetries {
				return Response{}, docerr.New(docerr.BackendUnavailable, "backend unavailable after retries")
			}
			if sleepErr := sleepOrCancel(ctx, exponentialBackoff(serverAttempts-1)); sleepErr != nil {
				return Response{}, sleepErr
			}
			continue
		}

		return Response{}, err
	}
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func exponentialBackoff(attempt int) time.Duration {
	d := backoffBase * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Float64() * backoffJitterRatio * float64(d))
	return d + jitter
}
