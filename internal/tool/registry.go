package tool

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"tradeagent/internal/llm"
)

// Registry holds the invocable tools. Registration happens at startup;
// lookups are safe for concurrent conversations.
type Registry struct {
	tools map[string]Tool
	order []string
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return kindErrorf(ErrDuplicateToolName, "tool %s already registered", name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Resolve returns the tool registered under name
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, kindErrorf(ErrToolNotFound, "tool %s not found", name)
	}

	return tool, nil
}

// Describe lists tools in registration order
func (r *Registry) Describe() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, len(r.order))
	for i, name := range r.order {
		tools[i] = r.tools[name]
	}
	return tools
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Names lists tool names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Definitions renders Describe() as function-calling schemas for the model
func (r *Registry) Definitions() []*llm.ToolDefinition {
	tools := r.Describe()
	defs := make([]*llm.ToolDefinition, len(tools))

	for i, t := range tools {
		defs[i] = &llm.ToolDefinition{
			Type: "function",
			Function: &llm.FunctionDef{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema().JSONSchema(),
			},
		}
	}

	return defs
}

// Prepare resolves a tool and validates raw JSON arguments against its schema
func (r *Registry) Prepare(name string, raw json.RawMessage) (Tool, Arguments, error) {
	t, err := r.Resolve(name)
	if err != nil {
		return nil, nil, err
	}

	args, err := t.Schema().Parse(raw)
	if err != nil {
		return nil, nil, err
	}
	return t, args, nil
}

// Invoke validates arguments and runs the tool, returning its observation text.
// The returned error is ErrToolNotFound or ErrInvalidToolArguments; in both cases
// Execute is never called. Failures reported by the tool itself come back as text.
func (r *Registry) Invoke(ctx context.Context, name string, raw json.RawMessage) (string, error) {
	t, args, err := r.Prepare(name, raw)
	if err != nil {
		return "", err
	}

	return run(ctx, t, args).Observation(), nil
}

// run executes a tool, folding a returned error into a failed Result
func run(ctx context.Context, t Tool, args Arguments) *Result {
	result, err := t.Execute(ctx, args)
	if err != nil {
		return &Result{Success: false, Error: "execution error: " + err.Error()}
	}
	if result == nil {
		return &Result{Success: true, Output: EmptyOutputPlaceholder}
	}
	return result
}

// BestPractices collects usage guidance from all registered tools
func (r *Registry) BestPractices() string {
	var practices []string
	for _, t := range r.Describe() {
		if bp := t.BestPractices(); bp != "" {
			practices = append(practices, bp)
		}
	}

	if len(practices) == 0 {
		return ""
	}

	return "# Tool Usage Best Practices\n\n" + strings.Join(practices, "\n\n")
}
