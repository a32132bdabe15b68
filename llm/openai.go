// Package llm provides Generator implementations backed by external language
// model providers. All of them satisfy chat.Generator, so the engine never
// knows which provider is behind a thread.
package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mayadakhatib/langgraph-crewai/chat"
)

// OpenAIOptions configures an OpenAI-compatible generator. BaseURL allows
// pointing at any endpoint that speaks the OpenAI chat completions API.
type OpenAIOptions struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIGenerator generates assistant replies via the chat completions API.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
}

var _ chat.Generator = (*OpenAIGenerator)(nil)

// NewOpenAIGenerator creates a generator from the given options. The model
// defaults to gpt-4o-mini.
func NewOpenAIGenerator(opts OpenAIOptions) *OpenAIGenerator {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Generate sends the whole conversation and returns the model's reply.
func (g *OpenAIGenerator) Generate(ctx context.Context, messages []chat.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: toOpenAIMessages(messages),
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []chat.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case chat.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case chat.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
