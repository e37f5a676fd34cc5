package agent

import (
	"context"
	"iter"

	"tradeagent/internal/conversation"
	"tradeagent/internal/tool"

	"github.com/pkg/errors"
)

// Runner produces the events of one agent run
type Runner interface {
	Name() string
	Run(ctx context.Context, instruction string, history []conversation.Turn) iter.Seq[Event]
}

// EventKind discriminates loop events
type EventKind string

const (
	EventAction          EventKind = "action"
	EventObservation     EventKind = "observation"
	EventFinalAnswer     EventKind = "final_answer"
	EventBudgetExhausted EventKind = "budget_exhausted"
	EventError           EventKind = "error"
)

// Terminal reports whether the kind ends a run
func (k EventKind) Terminal() bool {
	return k == EventFinalAnswer || k == EventBudgetExhausted || k == EventError
}

// ErrBudgetExhausted is returned by Invoke when no final answer arrived in time
var ErrBudgetExhausted = errors.New("step budget exhausted before a final answer")

// ScratchStep is one action and the observation it produced
type ScratchStep struct {
	Action      tool.Invocation `json:"action"`
	Observation string          `json:"observation"`
}

// Event is one observable unit of progress
type Event struct {
	Kind EventKind
	// Step is the 1-based model call the event belongs to
	Step int
	// Invocation is set on action and observation events
	Invocation *tool.Invocation
	// Message is any text the model sent alongside its tool calls
	Message string
	// Observation is set on observation events
	Observation string
	// Text is the final answer
	Text string
	// Err is set on error events
	Err error
	// Steps is the scratch so far, set on observation and terminal events
	Steps []ScratchStep
}

type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
	// MaxSteps bounds model calls per run
	MaxSteps int
}

// DefaultConfig mirrors a deterministic trading persona
func DefaultConfig() *Config {
	return &Config{
		Model:       "gpt-4-turbo",
		Temperature: 0,
		MaxTokens:   4096,
		MaxSteps:    10,
	}
}
