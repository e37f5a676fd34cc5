package llm

import "context"

// Client is the model collaborator used by the agent loop.
// Implementations must be safe for concurrent use by independent conversations.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Provider() string
	Model() string
}

type ChatRequest struct {
	Messages    []Message
	Tools       []*ToolDefinition
	Temperature float32
	MaxTokens   int
}

type ChatResponse struct {
	Message    Message
	StopReason StopReason
	Usage      Usage
}

// WantsTools reports whether the model asked for at least one tool call
func (r *ChatResponse) WantsTools() bool {
	return len(r.Message.ToolCalls) > 0
}

type ToolDefinition struct {
	Type     string
	Function *FunctionDef
}

type FunctionDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}
