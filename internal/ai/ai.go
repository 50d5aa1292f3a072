// Package ai adapts text-generation services to the chat contract used by the
// editor's assisted commands: a single message in, a single response out.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ChatRequest is the body every assisted command sends.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the generated text.
type ChatResponse struct {
	Response string `json:"response"`
}

// Generator is the text-generation collaborator.
type Generator interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Error is a generation failure with a message fit for display.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the display message for err.
func UserMessage(err error) string {
	var aiErr *Error
	if errors.As(err, &aiErr) && aiErr.Message != "" {
		return aiErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "The assistant took too long to respond."
	}
	return "The assistant is unavailable right now."
}

// Provider names accepted by New.
const (
	ProviderHTTP      = "http"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Options selects and configures a provider.
type Options struct {
	Provider     string
	Endpoint     string
	AnthropicKey string
	GeminiKey    string
}

// New builds the generator named by opts.Provider.
func New(ctx context.Context, opts Options) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case "", ProviderHTTP:
		if opts.Endpoint == "" {
			return nil, fmt.Errorf("ai: http provider requires an endpoint")
		}
		return NewHTTPClient(opts.Endpoint), nil
	case ProviderAnthropic:
		if opts.AnthropicKey == "" {
			return nil, fmt.Errorf("ai: anthropic provider requires an api key")
		}
		return NewAnthropicClient(opts.AnthropicKey), nil
	case ProviderGemini:
		if opts.GeminiKey == "" {
			return nil, fmt.Errorf("ai: gemini provider requires an api key")
		}
		return NewGeminiClient(ctx, opts.GeminiKey)
	default:
		return nil, fmt.Errorf("ai: unknown provider %q", opts.Provider)
	}
}
