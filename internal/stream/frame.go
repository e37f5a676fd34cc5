package stream

import (
	"encoding/json"

	"tradeagent/internal/agent"
	"tradeagent/internal/tool"
)

// Frame types sent to the client
const (
	TypeInternalThought = "internal_thought"
	TypeFinalAnswer     = "final_answer"
	TypeBudgetExhausted = "budget_exhausted"
	TypeError           = "error"
)

// Frame is the JSON document written to the client for every loop event
type Frame struct {
	Type     string          `json:"type"`
	Action   json.RawMessage `json:"action,omitempty"`
	Messages []string        `json:"messages,omitempty"`
	Steps    []FrameStep     `json:"steps,omitempty"`
	Output   string          `json:"output,omitempty"`
}

// FrameAction is the tool the model chose
type FrameAction struct {
	Tool      string          `json:"tool"`
	CallID    string          `json:"call_id,omitempty"`
	ToolInput json.RawMessage `json:"tool_input"`
}

// FrameStep pairs an action with its observation
type FrameStep struct {
	Action      FrameAction `json:"action"`
	Observation string      `json:"observation"`
}

// FrameOf converts a loop event into its wire frame
func FrameOf(ev agent.Event) Frame {
	f := Frame{}
	switch ev.Kind {
	case agent.EventAction, agent.EventObservation:
		f.Type = TypeInternalThought
	case agent.EventFinalAnswer:
		f.Type = TypeFinalAnswer
		f.Output = ev.Text
	case agent.EventBudgetExhausted:
		f.Type = TypeBudgetExhausted
		f.Output = "Agent stopped: step budget exhausted before a final answer."
	case agent.EventError:
		f.Type = TypeError
		if ev.Err != nil {
			f.Output = ev.Err.Error()
		}
	}

	if ev.Invocation != nil && ev.Kind == agent.EventAction {
		f.Action, _ = json.Marshal(actionOf(*ev.Invocation))
	}
	if ev.Message != "" {
		f.Messages = []string{ev.Message}
	}
	if ev.Kind == agent.EventObservation && len(ev.Steps) > 0 {
		// only the newest step; earlier ones were already streamed
		last := ev.Steps[len(ev.Steps)-1]
		f.Steps = []FrameStep{{Action: actionOf(last.Action), Observation: last.Observation}}
	}
	return f
}

func actionOf(inv tool.Invocation) FrameAction {
	return FrameAction{Tool: inv.ToolName, CallID: inv.CallID, ToolInput: argumentsJSON(inv.Arguments)}
}

// argumentsJSON passes valid JSON through and quotes anything else
func argumentsJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}
