package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(ChatResponse{Response: "echo: " + req.Message})
	}))
	defer server.Close()

	resp, err := NewHTTPClient(server.URL).Chat(context.Background(), ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", resp.Response)
}

func TestHTTPClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"string error", http.StatusOK, `{"error":"quota exceeded"}`, "quota exceeded"},
		{"object error", http.StatusBadGateway, `{"error":{"message":"upstream down"}}`, "upstream down"},
		{"bare status", http.StatusInternalServerError, `oops`, "The assistant returned an error (status 500)."},
		{"unreadable", http.StatusOK, `not json`, "The assistant sent an unreadable reply."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPClient(server.URL).Chat(context.Background(), ChatRequest{Message: "x"})
			require.Error(t, err)
			var aiErr *Error
			require.True(t, errors.As(err, &aiErr))
			assert.Equal(t, tt.wantMsg, UserMessage(err))
		})
	}
}

func TestHTTPClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPClient(url).Chat(context.Background(), ChatRequest{Message: "x"})
	require.Error(t, err)
	assert.Equal(t, "Could not reach the assistant.", UserMessage(err))
}

func TestAnthropicChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, anthropicDefaultModel, req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "hello", req.Messages[0].Content[0].Text)

		_ = json.NewEncoder(w).Encode(anthropicResponse{
			Content: []anthropicTextBlock{{Type: "text", Text: "wor"}, {Type: "text", Text: "ld"}},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient("test-key")
	client.baseURL = server.URL

	resp, err := client.Chat(context.Background(), ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "world", resp.Response)
}

func TestAnthropicChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth_error"}}`))
	}))
	defer server.Close()

	client := NewAnthropicClient("bad-key")
	client.baseURL = server.URL

	_, err := client.Chat(context.Background(), ChatRequest{Message: "hello"})
	require.Error(t, err)
	assert.Equal(t, "invalid api key", UserMessage(err))
}

func TestAnthropicChatEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(anthropicResponse{Content: []anthropicTextBlock{}})
	}))
	defer server.Close()

	client := NewAnthropicClient("k")
	client.baseURL = server.URL
	_, err := client.Chat(context.Background(), ChatRequest{Message: "hello"})
	assert.Error(t, err)
}

func TestNewSelectsProvider(t *testing.T) {
	g, err := New(context.Background(), Options{Endpoint: "http://localhost/chat"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPClient{}, g)

	g, err = New(context.Background(), Options{Provider: "Anthropic", AnthropicKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, g)

	_, err = New(context.Background(), Options{Provider: "gemini"})
	assert.Error(t, err)
	_, err = New(context.Background(), Options{Provider: "ollama"})
	assert.Error(t, err)
	_, err = New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestUserMessageFallbacks(t *testing.T) {
	assert.Equal(t, "The assistant is unavailable right now.", UserMessage(errors.New("boom")))
	assert.Equal(t, "The assistant took too long to respond.", UserMessage(context.DeadlineExceeded))
}

func TestOutlineItems(t *testing.T) {
	text := "# Plan\n\n- Research\n* **Design**\n1. Build\n2) Ship it\n   \n• Celebrate\r\n"
	assert.Equal(t, []string{"Plan", "Research", "Design", "Build", "Ship it", "Celebrate"}, OutlineItems(text))
	assert.Equal(t, []string{"single line"}, OutlineItems("single line"))
	assert.Empty(t, OutlineItems("  \n "))
}

func TestPromptsCarryText(t *testing.T) {
	for _, p := range []string{SummarizePrompt("abc"), ImprovePrompt("abc"), OutlinePrompt("abc")} {
		assert.Contains(t, p, "abc")
	}
	assert.Equal(t, "write a haiku", GeneratePrompt("write a haiku", " "))
	assert.Contains(t, GeneratePrompt("continue", "earlier text"), "earlier text")
}
