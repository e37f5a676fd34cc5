package handlers

import (
	"context"
	"fmt"

	"tradeagent/internal/hook"
)

// SpendLimitHandler denies swaps whose input amount exceeds a configured cap.
// Caps are in the input token's smallest unit and keyed by mint; DefaultMax
// applies to mints without an explicit entry (0 means unlimited).
type SpendLimitHandler struct {
	ToolName   string
	DefaultMax int64
	PerMint    map[string]int64
	Blocked    map[string]bool
}

// NewSpendLimitHandler guards the ExecuteSwap tool
func NewSpendLimitHandler(defaultMax int64, perMint map[string]int64, blocked []string) *SpendLimitHandler {
	b := make(map[string]bool, len(blocked))
	for _, m := range blocked {
		b[m] = true
	}
	return &SpendLimitHandler{
		ToolName:   "ExecuteSwap",
		DefaultMax: defaultMax,
		PerMint:    perMint,
		Blocked:    b,
	}
}

func (h *SpendLimitHandler) Name() string {
	return "spend_limit"
}

func (h *SpendLimitHandler) Points() []hook.HookPoint {
	return []hook.HookPoint{hook.BeforeToolExecution}
}

// Priority runs the limit check before any interactive confirmation
func (h *SpendLimitHandler) Priority() int {
	return 200
}

func (h *SpendLimitHandler) Handle(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
	if data.ToolName != h.ToolName {
		return hook.AllowFeedback(), nil
	}

	args := data.GetArguments()
	from, _ := args["from_token_mint"].(string)
	to, _ := args["to_token_mint"].(string)
	amount, _ := args["amount"].(int64)

	if h.Blocked[from] || h.Blocked[to] {
		return hook.DenyFeedback(fmt.Sprintf("swaps involving %s are not allowed", blockedOf(h.Blocked, from, to))), nil
	}

	limit := h.DefaultMax
	if v, ok := h.PerMint[from]; ok {
		limit = v
	}
	if limit > 0 && amount > limit {
		return hook.DenyFeedback(fmt.Sprintf("amount %d exceeds the limit of %d for %s", amount, limit, from)), nil
	}

	return hook.AllowFeedback(), nil
}

func blockedOf(blocked map[string]bool, from, to string) string {
	if blocked[from] {
		return from
	}
	return to
}
