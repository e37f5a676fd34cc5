package tool

import (
	"context"
	"fmt"
	"time"

	"tradeagent/internal/hook"
)

// Executor runs invocations one at a time through the registry,
// giving hook handlers a chance to veto each call.
type Executor struct {
	registry    *Registry
	hookManager *hook.Manager
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// SetHookManager sets the hook manager for tool execution hooks
func (e *Executor) SetHookManager(manager *hook.Manager) {
	e.hookManager = manager
}

// Registry returns the registry the executor dispatches into
func (e *Executor) Registry() *Registry {
	return e.registry
}

// ExecuteSequential runs invocations strictly in order
func (e *Executor) ExecuteSequential(ctx context.Context, invocations []Invocation) []*CallResult {
	results := make([]*CallResult, len(invocations))
	for i, inv := range invocations {
		results[i] = e.Execute(ctx, inv)
	}
	return results
}

// Execute runs a single invocation. It never fails: lookup, validation,
// hook and tool errors all end up as a failed Result.
func (e *Executor) Execute(ctx context.Context, inv Invocation) *CallResult {
	startTime := time.Now()
	done := func(r *Result) *CallResult {
		return &CallResult{
			Invocation: inv,
			Result:     r,
			StartTime:  startTime,
			EndTime:    time.Now(),
		}
	}

	t, args, err := e.registry.Prepare(inv.ToolName, inv.Arguments)
	if err != nil {
		return done(&Result{Success: false, Error: err.Error()})
	}

	if e.hookManager != nil {
		hookData := hook.NewHookData(hook.BeforeToolExecution, inv.ToolName).
			Set("params", string(inv.Arguments)).
			Set("arguments", map[string]any(args))

		feedback, err := e.hookManager.Trigger(ctx, hookData)
		if err != nil {
			return done(&Result{Success: false, Error: fmt.Sprintf("hook error: %v", err)})
		}

		if !feedback.Allow {
			denyMsg := fmt.Sprintf("Tool execution was DENIED by %s. Reason: %s. Choose a different action or ask the user for guidance.", feedback.Handler, feedback.Message)
			return done(&Result{Success: false, Output: denyMsg, Error: denyMsg})
		}
	}

	result := run(ctx, t, args)

	if e.hookManager != nil {
		hookData := hook.NewHookData(hook.AfterToolExecution, inv.ToolName).
			Set("params", string(inv.Arguments)).
			Set("arguments", map[string]any(args)).
			Set("success", result.Success).
			Set("observation", result.Observation()).
			Set("duration", time.Since(startTime))

		// After hooks don't block, just trigger
		_, _ = e.hookManager.Trigger(ctx, hookData)
	}

	return done(result)
}
