package llm

import (
	"context"
	"fmt"

	"github.com/mayadakhatib/langgraph-crewai/chat"
)

// StaticGenerator replies without calling any external provider. It is the
// offline fallback for demos and local runs: the reply acknowledges the most
// recent user message verbatim.
type StaticGenerator struct {
	// Reply, when set, is returned for every generation.
	Reply string
}

var _ chat.Generator = StaticGenerator{}

// Generate returns the fixed reply, or an acknowledgment of the last user
// message when none is configured.
func (g StaticGenerator) Generate(ctx context.Context, messages []chat.Message) (string, error) {
	if g.Reply != "" {
		return g.Reply, nil
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == chat.RoleUser {
			return fmt.Sprintf("Thank you for your input: '%s'. Processing complete!", messages[i].Content), nil
		}
	}
	return "Hello! How can I help you today?", nil
}
