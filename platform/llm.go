package platform

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	gemini "google.golang.org/api/option"
)

// NewOpenAIClient talks to any OpenAI compatible endpoint, Gemini's included.
func NewOpenAIClient(config LLMConfig) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	return openai.NewClient(opts...)
}

func NewGeminiClient(ctx context.Context, config LLMConfig) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, gemini.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}
