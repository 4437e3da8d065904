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

// HostedChatBackend targets a hosted chat-completions API with a bearer
// API key (e.g. Groq), which throttles with 429s carrying a wait-time hint
// in the error message — "Please try again in Xm Ys". Grounded on
// llmclient/client.go's Chat method, generalized with an Authorization
// header and 429 handling the local backend doesn't need.
type HostedChatBackend struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewHostedChatBackend(baseURL, apiKey string, connectTimeout, readTimeout time.Duration) *HostedChatBackend {
	return &HostedChatBackend{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: newBackendClient(connectTimeout, readTimeout),
	}
}

func (b *HostedChatBackend) Kind() Kind { return KindHostedChat }

type hostedErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *HostedChatBackend) Complete(ctx context.Context, req Request) (Response, error) {
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
		return Response{}, fmt.Errorf("marshal hosted chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build hosted chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.APIKey)

	resp, err := b.HTTPClient.Do(httpReq)
	if err != nil {
		return Response{}, &ServerError{Message: fmt.Sprintf("hosted chat backend unreachable: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read hosted chat response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return Response{}, &RateLimitError{Message: hostedErrorMessage(respBody)}
	}
	if resp.StatusCode >= 500 {
		return Response{}, &ServerError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("hosted chat backend status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode hosted chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("hosted chat backend returned no choices")
	}

	return Response{
		Content: parsed.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			DurationMS:       time.Since(start).Milliseconds(),
		},
		Backend: KindHostedChat,
		Model:   req.Model,
	}, nil
}

func hostedErrorMessage(body []byte) string {
	var parsed hostedErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(body)
}
