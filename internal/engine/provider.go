package engine

import (
	"context"

	"github.com/efficore/agentcore/internal/tools"
	"github.com/efficore/agentcore/internal/usage"
	"github.com/efficore/agentcore/pkg/models"
)

// Request is one chat-completion call assembled by the engine.
type Request struct {
	// Model overrides the provider's default model when set.
	Model string

	// System is the composed system prompt.
	System string

	// Messages is the conversation in chronological order, ending with
	// the newest user turn or the latest tool results.
	Messages []models.Message

	// Tools is the tool schema available to this conversation.
	Tools []tools.Tool

	MaxTokens int
}

// Completion is the provider's answer: plain text, tool calls, or both,
// plus the token usage of this single call.
type Completion struct {
	Text      string
	ToolCalls []models.ToolCall
	Usage     usage.Usage
}

// Provider is an LLM backend. Implementations must be safe for
// concurrent use; the engine runs one Complete call at a time per
// conversation but many conversations in parallel.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Completion, error)
}
