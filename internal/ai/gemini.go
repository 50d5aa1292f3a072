package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiDefaultModel = "gemini-1.5-flash"

// GeminiClient implements Generator with the Gemini API.
type GeminiClient struct {
	genaiClient *genai.Client
	model       *genai.GenerativeModel
}

var _ Generator = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{
		genaiClient: client,
		model:       client.GenerativeModel(geminiDefaultModel),
	}, nil
}

func (c *GeminiClient) Close() error {
	return c.genaiClient.Close()
}

func (c *GeminiClient) Chat(ctx context.Context, chat ChatRequest) (ChatResponse, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(chat.Message))
	if err != nil {
		return ChatResponse{}, &Error{Message: "The assistant could not generate a reply.", Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ChatResponse{}, &Error{Message: "The assistant returned no text."}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return ChatResponse{Response: sb.String()}, nil
}
