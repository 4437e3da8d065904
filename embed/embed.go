// Package embed implements the Embedding Provider (C2): mapping text to a
// fixed-dimension dense vector via an HTTP call to a llama.cpp-compatible
// /v1/embeddings endpoint. Grounded on llmclient/client.go's Embed method
// and rag/core.go's token-limit trimming; the bounded concurrency queue is
// new (the teacher calls embeddings one at a time).
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
)

type Provider struct {
	host       string
	httpClient *http.Client
	sem        *semaphore.Weighted
	maxTokens  int
	dimension  int
}

type Config struct {
	Host       string
	MaxWorkers int
	MaxTokens  int
	Dimension  int
	Timeout    time.Duration
}

func NewProvider(cfg Config) *Provider {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Provider{
		host:       strings.TrimRight(cfg.Host, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		sem:        semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		maxTokens:  cfg.MaxTokens,
		dimension:  cfg.Dimension,
	}
}

type embeddingRequest struct {
	Input any    `json:"input"`
	Model string `json:"model,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding json.RawMessage `json:"embedding"`
	} `json:"data"`
}

// ensureTokenLimit truncates text by estimated token count (≈4 chars/token,
// the same heuristic rag/core.go uses) rather than failing the call.
func (p *Provider) ensureTokenLimit(text string) string {
	estimatedTokens := utf8.RuneCountInString(text) / 4
	if estimatedTokens <= p.maxTokens {
		return text
	}
	maxRunes := p.maxTokens * 4
	runes := []rune(text)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes])
	}
	return text
}

// EmbedOne embeds a single string, serializing access behind the bounded
// queue so a non-reentrant backend is never hit concurrently beyond the
// configured worker count.
func (p *Provider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding backend returned no vectors")
	}
	return vecs[0], nil
}

// EmbedBatch embeds a batch of strings, deterministically (identical input
// text always produces the identical vector for a given model/backend).
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire embedding slot: %w", err)
	}
	defer p.sem.Release(1)

	trimmed := make([]string, len(texts))
	for i, t := range texts {
		trimmed[i] = p.ensureTokenLimit(t)
	}

	body, err := json.Marshal(embeddingRequest{Input: trimmed})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		vecs, err := p.doEmbed(ctx, body)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
		p.backoffSleep(ctx, attempt)
	}
	return nil, fmt.Errorf("embedding request failed after retries: %w", lastErr)
}

func (p *Provider) doEmbed(ctx context.Context, body []byte) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("embedding backend returned %d: %s", resp.StatusCode, string(respBody))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding backend returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal embedding response: %w", err)
	}

	out := make([][]float32, 0, len(parsed.Data))
	for _, d := range parsed.Data {
		vec, err := decodeEmbedding(d.Embedding)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

// decodeEmbedding handles both the flat-array shape and the nested-array
// shape some backends return for a single input.
func decodeEmbedding(raw json.RawMessage) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	var nested [][]float32
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	return nil, fmt.Errorf("unrecognized embedding shape")
}

func isRetryable(err error) bool {
	return strings.Contains(err.Error(), "503") || strings.Contains(err.Error(), "unreachable")
}

func (p *Provider) backoffSleep(ctx context.Context, attempt int) {
	base := 500 * time.Millisecond
	backoff := base * time.Duration(1<<attempt)
	jitter := time.Duration(rand.Int63n(int64(backoff) / 5))
	select {
	case <-time.After(backoff + jitter):
	case <-ctx.Done():
	}
}

// Ping health-checks the backend once, non-fatally. Grounded on
// original_source/embedmodeldown.py's degraded-mode startup behavior.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.EmbedOne(ctx, "ping")
	return err
}

func (p *Provider) Dimension() int { return p.dimension }
