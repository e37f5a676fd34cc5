package agent

import (
	"fmt"
	"time"

	"tradeagent/internal/logger"
)

// ExecutionContext tracks the execution state of one run and provides logging utilities
type ExecutionContext struct {
	Logger        *logger.Logger
	StartTime     time.Time
	CurrentStep   int
	MaxSteps      int
	ToolCallCount int
}

// NewExecutionContext creates a new execution context with the given logger
func NewExecutionContext(log *logger.Logger, maxSteps int) *ExecutionContext {
	if log == nil {
		log = logger.Nop()
	}
	return &ExecutionContext{
		Logger:    log,
		StartTime: time.Now(),
		MaxSteps:  maxSteps,
	}
}

// LogToolCall logs a tool call with its parameters
func (ctx *ExecutionContext) LogToolCall(toolName, params string) {
	ctx.ToolCallCount++
	ctx.Logger.ToolCall(toolName, params)
}

// LogToolResult logs a tool execution result
func (ctx *ExecutionContext) LogToolResult(toolName string, success bool, output string, duration time.Duration) {
	ctx.Logger.ToolResult(toolName, success, output, duration)
}

// LogResponse logs the agent's response
func (ctx *ExecutionContext) LogResponse(content string) {
	ctx.Logger.AgentResponse(content)
}

// LogProgress logs the current progress (step X of Y)
func (ctx *ExecutionContext) LogProgress() {
	ctx.Logger.Progress(ctx.CurrentStep, ctx.MaxSteps,
		fmt.Sprintf("Step %d/%d", ctx.CurrentStep, ctx.MaxSteps))
}

// End logs the session summary
func (ctx *ExecutionContext) End() {
	ctx.Logger.SessionEnd(time.Since(ctx.StartTime), ctx.ToolCallCount)
}
