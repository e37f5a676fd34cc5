package hook

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Manager dispatches hook points to registered handlers.
//
// BeforeToolExecution is a gate: handlers run in priority order and the
// first denial stops the chain. Every other point is a notification: all
// handlers run, their feedback is ignored and their errors are collected.
type Manager struct {
	mu       sync.RWMutex
	handlers map[HookPoint][]Handler
}

func NewManager() *Manager {
	return &Manager{handlers: make(map[HookPoint][]Handler)}
}

// Gates reports whether handler feedback at point can stop the operation
func Gates(point HookPoint) bool {
	return point == BeforeToolExecution
}

// Register adds handlers to every point they listen to. Higher priority
// runs first; equal priorities keep registration order.
func (m *Manager) Register(handlers ...Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	touched := make(map[HookPoint]struct{})
	for _, h := range handlers {
		for _, point := range h.Points() {
			m.handlers[point] = append(m.handlers[point], h)
			touched[point] = struct{}{}
		}
	}
	for point := range touched {
		list := m.handlers[point]
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
	}
}

// Trigger runs the handlers for data.Point. At a gate the returned feedback
// names the denying handler; at a notification it always allows.
func (m *Manager) Trigger(ctx context.Context, data *HookData) (*Feedback, error) {
	m.mu.RLock()
	handlers := m.handlers[data.Point]
	m.mu.RUnlock()

	if Gates(data.Point) {
		return gate(ctx, handlers, data)
	}
	return AllowFeedback(), notify(ctx, handlers, data)
}

func gate(ctx context.Context, handlers []Handler, data *HookData) (*Feedback, error) {
	for _, h := range handlers {
		feedback, err := h.Handle(ctx, data)
		if err != nil {
			return nil, errors.Wrapf(err, "hook %s", h.Name())
		}
		if feedback != nil && !feedback.Allow {
			feedback.Handler = h.Name()
			return feedback, nil
		}
	}
	return AllowFeedback(), nil
}

func notify(ctx context.Context, handlers []Handler, data *HookData) error {
	var first error
	failed := 0
	for _, h := range handlers {
		if _, err := h.Handle(ctx, data); err != nil {
			if first == nil {
				first = errors.Wrapf(err, "hook %s", h.Name())
			}
			failed++
		}
	}
	if failed > 1 {
		return errors.Wrapf(first, "%d of %d handlers failed", failed, len(handlers))
	}
	return first
}

// HasHandlers reports whether anything listens to point
func (m *Manager) HasHandlers(point HookPoint) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[point]) > 0
}

// ListHandlers returns handler names for point in execution order
func (m *Manager) ListHandlers(point HookPoint) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.handlers[point]))
	for _, h := range m.handlers[point] {
		names = append(names, h.Name())
	}
	return names
}
