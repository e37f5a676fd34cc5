package builtin

import (
	"context"
	"fmt"

	"tradeagent/internal/swap"
	"tradeagent/internal/tool"
)

// SwapRunner executes a swap request end to end
type SwapRunner interface {
	Execute(ctx context.Context, req swap.Request) *swap.Result
}

// ExecuteSwapTool swaps between two Solana tokens through the swap executor
type ExecuteSwapTool struct {
	runner SwapRunner
}

func NewExecuteSwapTool(runner SwapRunner) *ExecuteSwapTool {
	return &ExecuteSwapTool{runner: runner}
}

func (t *ExecuteSwapTool) Name() string {
	return "ExecuteSwap"
}

func (t *ExecuteSwapTool) Description() string {
	return "Executes a token swap between two tokens on Solana. Amounts are in the smallest unit of from_token_mint."
}

func (t *ExecuteSwapTool) Schema() tool.Schema {
	return tool.NewSchema(
		tool.Field{Name: "from_token_mint", Type: tool.TypeString, Description: "The address of the token to be swapped", Required: true},
		tool.Field{Name: "to_token_mint", Type: tool.TypeString, Description: "The address of the token to be received", Required: true},
		tool.Field{Name: "amount", Type: tool.TypeInteger, Description: "The amount of from_token to swap, in its smallest unit", Required: true},
	)
}

func (t *ExecuteSwapTool) BestPractices() string {
	return `**ExecuteSwap Best Practices**:
1. Call GetWalletBalance first and never swap more than the wallet holds
2. Use mint addresses from GetTokenInfo, not names or symbols
3. The amount is in the smallest unit (lamports for SOL, 10^decimals for tokens)
4. If a swap is reported as submitted but unconfirmed, check the explorer link before retrying`
}

func (t *ExecuteSwapTool) Execute(ctx context.Context, args tool.Arguments) (*tool.Result, error) {
	amount := args.Int("amount")
	if amount <= 0 {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("Invalid swap request: amount must be positive, got %d", amount),
		}, nil
	}

	res := t.runner.Execute(ctx, swap.Request{
		FromMint: args.String("from_token_mint"),
		ToMint:   args.String("to_token_mint"),
		Amount:   uint64(amount),
	})

	data := map[string]any{
		"request_id": res.RequestID,
		"status":     string(res.Status),
		"attempts":   len(res.Attempts),
	}
	if res.TxID != "" {
		data["tx_id"] = res.TxID
	}

	if !res.Succeeded() {
		return &tool.Result{Success: false, Error: res.String(), Data: data}, nil
	}
	return &tool.Result{Success: true, Output: res.String(), Data: data}, nil
}
