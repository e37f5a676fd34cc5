package tool

import (
	"context"
	"encoding/json"
	"time"
)

// Tool defines the interface that all tools must implement
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a brief description of what this tool does
	Description() string

	// BestPractices returns usage guidelines for this tool
	// Returns empty string if no special guidance is needed
	BestPractices() string

	// Schema describes the arguments the tool accepts
	Schema() Schema

	// Execute runs the tool with validated and coerced arguments
	Execute(ctx context.Context, args Arguments) (*Result, error)
}

// EmptyOutputPlaceholder is returned when a tool produces no output.
// LLM APIs reject tool messages with empty content.
const EmptyOutputPlaceholder = "(Tool executed successfully with no output)"

type Result struct {
	Success bool
	Output  string
	Error   string
	Data    map[string]any
}

// Observation renders the text fed back to the model
func (r *Result) Observation() string {
	if r == nil {
		return EmptyOutputPlaceholder
	}
	if !r.Success {
		if r.Error != "" {
			return r.Error
		}
		if r.Output != "" {
			return r.Output
		}
		return "tool failed without a message"
	}
	if r.Output == "" {
		return EmptyOutputPlaceholder
	}
	return r.Output
}

// Invocation is one named request to run a tool, as decided by the model
type Invocation struct {
	ToolName  string          `json:"tool"`
	CallID    string          `json:"call_id,omitempty"`
	Arguments json.RawMessage `json:"tool_input,omitempty"`
}

type CallResult struct {
	Invocation Invocation
	Result     *Result
	StartTime  time.Time
	EndTime    time.Time
}

// Observation is the text appended to the scratch steps
func (c *CallResult) Observation() string {
	return c.Result.Observation()
}

// Duration is the wall time the call took
func (c *CallResult) Duration() time.Duration {
	return c.EndTime.Sub(c.StartTime)
}
