package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"

	"github.com/mayadakhatib/langgraph-crewai/chat"
)

// LangChainGenerator adapts any langchaingo llms.Model to chat.Generator.
type LangChainGenerator struct {
	model llms.Model
	opts  []llms.CallOption
}

var _ chat.Generator = (*LangChainGenerator)(nil)

// NewLangChainGenerator wraps a langchaingo model. Call options (temperature,
// max tokens, ...) are applied to every generation.
func NewLangChainGenerator(model llms.Model, opts ...llms.CallOption) *LangChainGenerator {
	return &LangChainGenerator{model: model, opts: opts}
}

// Generate sends the whole conversation and returns the model's reply.
func (g *LangChainGenerator) Generate(ctx context.Context, messages []chat.Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(toChatMessageType(m.Role), m.Content))
	}

	resp, err := g.model.GenerateContent(ctx, content, g.opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func toChatMessageType(role chat.Role) llms.ChatMessageType {
	switch role {
	case chat.RoleAssistant:
		return llms.ChatMessageTypeAI
	case chat.RoleSystem:
		return llms.ChatMessageTypeSystem
	default:
		return llms.ChatMessageTypeHuman
	}
}
