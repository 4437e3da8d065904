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

// LocalChatBackend targets an OpenAI-compatible /v1/chat/completions
// endpoint (e.g. llama.cpp's server mode). Grounded on llmclient/client.go's
// Chat method.
type LocalChatBackend struct {
	Host       string
	HTTPClient *http.Client
}

func NewLocalChatBackend(host string, connectTimeout, readTimeout time.Duration) *LocalChatBackend {
	return &LocalChatBackend{Host: strings.TrimRight(host, "/"), HTTPClient: newBackendClient(connectTimeout, readTimeout)}
}

func (b *LocalChatBackend) Kind() Kind { return KindLocalChat }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (b *LocalChatBackend) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	body, err := json.Marshal(chatCompletionRequest{
		Model: req.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Host+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		return Response{}, &ServerError{Message: fmt.Sprintf("local chat backend unreachable: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return Response{}, &ServerError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return Response{}, &RateLimitError{Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("local chat backend status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("local chat backend returned no choices")
	}

	return Response{
		Content: parsed.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			DurationMS:       time.Since(start).Milliseconds(),
		},
		Backend: KindLocalChat,
		Model:   req.Model,
	}, nil
}
