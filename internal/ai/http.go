package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient talks to a chat endpoint that accepts {"message"} and answers
// {"response"} or {"error"}.
type HTTPClient struct {
	httpClient *http.Client
	endpoint   string
}

var _ Generator = (*HTTPClient)(nil)

func NewHTTPClient(endpoint string) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		endpoint:   endpoint,
	}
}

type chatEnvelope struct {
	Response string `json:"response"`
	Error    any    `json:"error,omitempty"`
}

func (c *HTTPClient) Chat(ctx context.Context, chat ChatRequest) (ChatResponse, error) {
	body, err := json.Marshal(chat)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ChatResponse{}, &Error{Message: "Could not reach the assistant.", Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("failed to read response: %w", err)
	}

	var envelope chatEnvelope
	decodeErr := json.Unmarshal(respBytes, &envelope)
	if msg := errorMessage(envelope.Error); msg != "" {
		return ChatResponse{}, &Error{Message: msg}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ChatResponse{}, &Error{Message: fmt.Sprintf("The assistant returned an error (status %d).", resp.StatusCode)}
	}
	if decodeErr != nil {
		return ChatResponse{}, &Error{Message: "The assistant sent an unreadable reply.", Err: decodeErr}
	}
	return ChatResponse{Response: envelope.Response}, nil
}

// errorMessage reads an error field that may be a string or {"message": ...}.
func errorMessage(v any) string {
	switch e := v.(type) {
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return ""
}
