package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/openai/openai-go"

	"branchchat/conversation"
)

// InvokeRequest is one non-streaming model call. Turns ends with the new
// question as a user turn.
type InvokeRequest struct {
	System string
	Turns  []conversation.Turn
}

type TokenUsage struct {
	PromptTokens    int
	CandidateTokens int
	ThoughtTokens   int
}

type Completion struct {
	Text      string
	Usage     TokenUsage
	ModelName string
}

// Invoker is the language model collaborator.
type Invoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (*Completion, error)
}

var errEmptyCompletion = errors.New("model returned no content")

// OpenAIInvoker works against any OpenAI compatible chat endpoint.
type OpenAIInvoker struct {
	client *openai.Client
	model  string
}

func NewOpenAIInvoker(client *openai.Client, model string) *OpenAIInvoker {
	return &OpenAIInvoker{client: client, model: model}
}

func (i *OpenAIInvoker) Invoke(ctx context.Context, req InvokeRequest) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Turns)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, turn := range req.Turns {
		switch turn.Role {
		case conversation.TurnRoleModel:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		default:
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}

	resp, err := i.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F(messages),
		Model:    openai.F(openai.ChatModel(i.model)),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errEmptyCompletion
	}

	return &Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: TokenUsage{
			PromptTokens:    int(resp.Usage.PromptTokens),
			CandidateTokens: int(resp.Usage.CompletionTokens),
		},
		ModelName: i.model,
	}, nil
}

// GeminiInvoker uses the native Gemini API. Prior turns become chat history
// and the last turn is sent.
type GeminiInvoker struct {
	client *genai.Client
	model  string
}

func NewGeminiInvoker(client *genai.Client, model string) *GeminiInvoker {
	return &GeminiInvoker{client: client, model: model}
}

func (i *GeminiInvoker) Invoke(ctx context.Context, req InvokeRequest) (*Completion, error) {
	if len(req.Turns) == 0 {
		return nil, errors.New("no turn to send")
	}
	model := i.client.GenerativeModel(i.model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	cs := model.StartChat()
	last := len(req.Turns) - 1
	for _, turn := range req.Turns[:last] {
		role := "user"
		if turn.Role == conversation.TurnRoleModel {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(turn.Text)}})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(req.Turns[last].Text))
	if err != nil {
		return nil, fmt.Errorf("gemini send message: %w", err)
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, p := range resp.Candidates[0].Content.Parts {
			if text, ok := p.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	if b.Len() == 0 {
		return nil, errEmptyCompletion
	}

	c := &Completion{Text: b.String(), ModelName: i.model}
	if um := resp.UsageMetadata; um != nil {
		c.Usage.PromptTokens = int(um.PromptTokenCount)
		c.Usage.CandidateTokens = int(um.CandidatesTokenCount)
		// total minus prompt and candidates is what the model spent thinking
		if rest := int(um.TotalTokenCount) - c.Usage.PromptTokens - c.Usage.CandidateTokens; rest > 0 {
			c.Usage.ThoughtTokens = rest
		}
	}
	return c, nil
}
