package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicDefaultModel   = "claude-3-5-haiku-latest"
	anthropicVersion        = "2023-06-01"
)

// AnthropicClient implements Generator with the Anthropic messages API.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

var _ Generator = (*AnthropicClient)(nil)

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		model:      anthropicDefaultModel,
		baseURL:    anthropicDefaultBaseURL,
	}
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
}

type anthropicMessage struct {
	Role    string               `json:"role"`
	Content []anthropicTextBlock `json:"content"`
}

type anthropicTextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicTextBlock `json:"content"`
	Error   *anthropicError      `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (c *AnthropicClient) Chat(ctx context.Context, chat ChatRequest) (ChatResponse, error) {
	body, err := json.Marshal(anthropicRequest{
		Model: c.model,
		Messages: []anthropicMessage{{
			Role:    "user",
			Content: []anthropicTextBlock{{Type: "text", Text: chat.Message}},
		}},
		MaxTokens: 1024,
	})
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ChatResponse{}, &Error{Message: "Could not reach the assistant.", Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	var result anthropicResponse
	decodeErr := json.Unmarshal(respBytes, &result)
	if result.Error != nil {
		return ChatResponse{}, &Error{Message: result.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return ChatResponse{}, &Error{Message: fmt.Sprintf("The assistant returned an error (status %d).", resp.StatusCode)}
	}
	if decodeErr != nil {
		return ChatResponse{}, fmt.Errorf("failed to parse response: %w", decodeErr)
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return ChatResponse{}, &Error{Message: "The assistant returned no text."}
	}
	return ChatResponse{Response: sb.String()}, nil
}
