package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LocalCompletionBackend targets a prompt-completion HTTP API (e.g.
// llama.cpp's raw /completion endpoint, as opposed to the chat-shaped one).
// Grounded on llmclient/client.go's Embed method for the request/response
// plumbing pattern, generalized to completions.
type LocalCompletionBackend struct {
	Host       string
	HTTPClient *http.Client
}

func NewLocalCompletionBackend(host string, connectTimeout, readTimeout time.Duration) *LocalCompletionBackend {
	return &LocalCompletionBackend{Host: strings.TrimRight(host, "/"), HTTPClient: newBackendClient(connectTimeout, readTimeout)}
}

func (b *LocalCompletionBackend) Kind() Kind { return KindLocalCompletion }

type completionRequest struct {
	Prompt      string  `json:"prompt"`
	NPredict    int     `json:"n_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type completionResponse struct {
	Content string `json:"content"`
	Tokens  struct {
		Predicted int `json:"predicted_n"`
		Prompt    int `json:"prompt_n"`
	} `json:"tokens_evaluated"`
}

func (b *LocalCompletionBackend) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	prompt := req.SystemPrompt + "\n\n" + req.UserPrompt

	body, err := json.Marshal(completionRequest{
		Prompt:      prompt,
		NPredict:    req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Host+"/completion", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		return Response{}, &ServerError{Message: fmt.Sprintf("local completion backend unreachable: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return Response{}, &ServerError{StatusCode: resp.StatusCode, Message: "model loading: " + string(respBody)}
	}
	if resp.StatusCode >= 500 {
		return Response{}, &ServerError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("local completion backend status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode completion response: %w", err)
	}

	return Response{
		Content: parsed.Content,
		Usage: Usage{
			PromptTokens:     parsed.Tokens.Prompt,
			CompletionTokens: parsed.Tokens.Predicted,
			DurationMS:       time.Since(start).Milliseconds(),
		},
		Backend: KindLocalCompletion,
		Model:   req.Model,
	}, nil
}
