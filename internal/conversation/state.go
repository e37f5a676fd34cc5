// Package conversation holds the per-connection chat history that seeds
// every model invocation.
package conversation

import (
	"context"
	"sync"

	"tradeagent/internal/llm"
)

// Turn is one human message and the assistant's final answer to it
type Turn struct {
	Human     string `json:"human"`
	Assistant string `json:"assistant"`
}

// State is an append-only, chronologically ordered list of turns.
// One State belongs to one client connection.
type State struct {
	id      string
	turns   []Turn
	archive Archive
	mu      sync.RWMutex
}

// New starts an empty conversation. A nil archive disables persistence.
func New(id string, archive Archive) *State {
	if archive == nil {
		archive = NopArchive{}
	}
	return &State{id: id, archive: archive}
}

// FromTurns seeds a conversation, e.g. from a client-supplied history
func FromTurns(id string, turns []Turn) *State {
	s := New(id, nil)
	s.turns = append(s.turns, turns...)
	return s
}

// ID identifies the conversation
func (s *State) ID() string {
	return s.id
}

// Append records a finished turn. Archive failures are returned but the
// turn stays in memory.
func (s *State) Append(ctx context.Context, human, assistant string) error {
	turn := Turn{Human: human, Assistant: assistant}

	s.mu.Lock()
	s.turns = append(s.turns, turn)
	s.mu.Unlock()

	return s.archive.Save(ctx, s.id, turn)
}

// Turns returns a copy of the history in insertion order
func (s *State) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Messages renders turns as alternating user and assistant messages
func Messages(turns []Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs,
			llm.Message{Role: llm.RoleUser, Content: t.Human},
			llm.Message{Role: llm.RoleAssistant, Content: t.Assistant},
		)
	}
	return msgs
}
