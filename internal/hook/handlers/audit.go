package handlers

import (
	"context"
	"time"

	"tradeagent/internal/hook"
	"tradeagent/internal/logger"
)

// AuditHandler writes one log line per agent run boundary and per ExecuteSwap
// outcome. It never denies anything.
type AuditHandler struct {
	log *logger.Logger
}

func NewAuditHandler(log *logger.Logger) *AuditHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &AuditHandler{log: log.With("component", "audit")}
}

func (h *AuditHandler) Name() string {
	return "audit"
}

func (h *AuditHandler) Points() []hook.HookPoint {
	return []hook.HookPoint{hook.OnAgentStart, hook.OnAgentEnd, hook.AfterToolExecution}
}

func (h *AuditHandler) Priority() int {
	return 0
}

func (h *AuditHandler) Handle(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
	switch data.Point {
	case hook.OnAgentStart:
		h.log.Info("run started: agent=%s instruction=%q", data.GetString("agent"), data.GetString("instruction"))
	case hook.OnAgentEnd:
		d, _ := data.Get("duration").(time.Duration)
		steps, _ := data.Get("steps").(int)
		h.log.Info("run ended: agent=%s outcome=%s steps=%d duration=%s",
			data.GetString("agent"), data.GetString("outcome"), steps, d.Round(time.Millisecond))
	case hook.AfterToolExecution:
		if data.ToolName != "ExecuteSwap" {
			break
		}
		ok, _ := data.Get("success").(bool)
		h.log.Info("swap finished: success=%t params=%s result=%q", ok, data.GetString("params"), data.GetString("observation"))
	}
	return hook.AllowFeedback(), nil
}
