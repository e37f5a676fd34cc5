package agent

import (
	"context"
	"encoding/json"
	"iter"
	"sync/atomic"
	"time"

	"tradeagent/internal/conversation"
	"tradeagent/internal/hook"
	"tradeagent/internal/llm"
	"tradeagent/internal/logger"
	"tradeagent/internal/tool"

	"github.com/pkg/errors"
)

// Loop is the tool-calling agent. A Loop is stateless between runs and may
// serve many conversations concurrently; each Run owns its scratch steps.
type Loop struct {
	name         string
	systemPrompt string
	llmClient    llm.Client
	executor     *tool.Executor
	config       *Config
	log          *logger.Logger
	hooks        *hook.Manager
}

// Option customizes a Loop
type Option func(*Loop)

// WithLogger sets the run logger
func WithLogger(l *logger.Logger) Option {
	return func(lp *Loop) { lp.log = l }
}

// WithHooks fires agent lifecycle hooks on the given manager
func WithHooks(m *hook.Manager) Option {
	return func(lp *Loop) { lp.hooks = m }
}

// NewLoop copies cfg; later changes by the caller do not reach the loop
func NewLoop(name, systemPrompt string, client llm.Client, executor *tool.Executor, cfg *Config, opts ...Option) *Loop {
	c := *DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultConfig().MaxSteps
	}

	l := &Loop{
		name:         name,
		systemPrompt: systemPrompt,
		llmClient:    client,
		executor:     executor,
		config:       &c,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) Name() string {
	return l.name
}

// Run returns the lazy event sequence of one run. The sequence is finite,
// ends with exactly one terminal event, and can be iterated only once.
func (l *Loop) Run(ctx context.Context, instruction string, history []conversation.Turn) iter.Seq[Event] {
	var started atomic.Bool
	return func(yield func(Event) bool) {
		if !started.CompareAndSwap(false, true) {
			return
		}
		l.run(ctx, instruction, history, yield)
	}
}

// Invoke drains a run and returns its final answer
func (l *Loop) Invoke(ctx context.Context, instruction string, history []conversation.Turn) (string, error) {
	return Collect(l.Run(ctx, instruction, history))
}

// Collect drains any event sequence and returns the final answer
func Collect(events iter.Seq[Event]) (string, error) {
	for ev := range events {
		switch ev.Kind {
		case EventFinalAnswer:
			return ev.Text, nil
		case EventBudgetExhausted:
			return "", ErrBudgetExhausted
		case EventError:
			return "", ev.Err
		}
	}
	return "", errors.New("run ended without a terminal event")
}

func (l *Loop) run(ctx context.Context, instruction string, history []conversation.Turn, yield func(Event) bool) {
	execCtx := NewExecutionContext(l.log, l.config.MaxSteps)
	execCtx.Logger.SessionStart(instruction)
	defer execCtx.End()

	started := time.Now()
	var last EventKind
	emit := yield
	yield = func(ev Event) bool {
		last = ev.Kind
		return emit(ev)
	}

	l.trigger(ctx, hook.NewHookData(hook.OnAgentStart, "").
		Set("agent", l.name).
		Set("instruction", instruction))
	defer func() {
		outcome := string(last)
		if !last.Terminal() {
			outcome = "abandoned"
		}
		l.trigger(ctx, hook.NewHookData(hook.OnAgentEnd, "").
			Set("agent", l.name).
			Set("instruction", instruction).
			Set("outcome", outcome).
			Set("steps", execCtx.CurrentStep).
			Set("duration", time.Since(started)))
	}()

	// Render model input: persona, history, instruction; scratch is appended per step
	messages := make([]llm.Message, 0, len(history)*2+2)
	if l.systemPrompt != "" {
		messages = append(messages, llm.SystemMessage(l.systemPrompt))
	}
	messages = append(messages, conversation.Messages(history)...)
	messages = append(messages, llm.UserMessage(instruction))

	var scratch []ScratchStep
	snapshot := func() []ScratchStep {
		out := make([]ScratchStep, len(scratch))
		copy(out, scratch)
		return out
	}

	// Tools already started are never cancelled mid-flight
	toolCtx := context.WithoutCancel(ctx)

	for step := 1; step <= l.config.MaxSteps; step++ {
		execCtx.CurrentStep = step

		if err := ctx.Err(); err != nil {
			execCtx.Logger.Warn("run cancelled before step %d: %v", step, err)
			yield(Event{Kind: EventError, Step: step, Err: err, Steps: snapshot()})
			return
		}

		execCtx.LogProgress()
		resp, err := l.llmClient.Chat(ctx, &llm.ChatRequest{
			Messages:    messages,
			Tools:       l.executor.Registry().Definitions(),
			Temperature: l.config.Temperature,
			MaxTokens:   l.config.MaxTokens,
		})
		if err != nil {
			execCtx.Logger.Error("LLM call failed: %v", err)
			yield(Event{Kind: EventError, Step: step, Err: errors.Wrap(err, "model call failed"), Steps: snapshot()})
			return
		}

		if !resp.WantsTools() {
			execCtx.LogResponse(resp.Message.Content)
			yield(Event{Kind: EventFinalAnswer, Step: step, Text: resp.Message.Content, Steps: snapshot()})
			return
		}

		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Message.Content,
			ToolCalls: resp.Message.ToolCalls,
		})

		for _, tc := range resp.Message.ToolCalls {
			inv := invocationOf(tc)
			if !yield(Event{Kind: EventAction, Step: step, Invocation: &inv, Message: resp.Message.Content}) {
				return
			}

			execCtx.LogToolCall(inv.ToolName, string(inv.Arguments))
			res := l.executor.Execute(toolCtx, inv)
			observation := res.Observation()
			execCtx.LogToolResult(inv.ToolName, res.Result.Success, observation, res.Duration())

			scratch = append(scratch, ScratchStep{Action: inv, Observation: observation})
			messages = append(messages, llm.ToolMessage(tc.ID, inv.ToolName, observation))

			if !yield(Event{Kind: EventObservation, Step: step, Invocation: &inv, Observation: observation, Steps: snapshot()}) {
				return
			}
		}
	}

	execCtx.Logger.Warn("no final answer after %d steps", l.config.MaxSteps)
	yield(Event{Kind: EventBudgetExhausted, Step: l.config.MaxSteps, Steps: snapshot()})
}

func invocationOf(tc *llm.ToolCall) tool.Invocation {
	inv := tool.Invocation{CallID: tc.ID}
	if tc.Function != nil {
		inv.ToolName = tc.Function.Name
		if tc.Function.Arguments != "" {
			inv.Arguments = json.RawMessage(tc.Function.Arguments)
		}
	}
	return inv
}

func (l *Loop) trigger(ctx context.Context, data *hook.HookData) {
	if l.hooks == nil || !l.hooks.HasHandlers(data.Point) {
		return
	}
	if _, err := l.hooks.Trigger(ctx, data); err != nil {
		l.log.Warn("%s hook failed: %v", data.Point, err)
	}
}
