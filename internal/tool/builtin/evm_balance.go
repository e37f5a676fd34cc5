package builtin

import (
	"context"
	"fmt"
	"strings"

	"tradeagent/internal/evm"
	"tradeagent/internal/tool"

	"github.com/pkg/errors"
)

// GetEVMBalanceTool reads native or ERC-20 balances on configured EVM chains
type GetEVMBalanceTool struct {
	chains *evm.Registry
}

func NewGetEVMBalanceTool(chains *evm.Registry) *GetEVMBalanceTool {
	return &GetEVMBalanceTool{chains: chains}
}

func (t *GetEVMBalanceTool) Name() string {
	return "GetEVMBalance"
}

func (t *GetEVMBalanceTool) Description() string {
	return "Get the native or ERC-20 token balance of an address on an EVM chain. Available chains: " +
		strings.Join(t.chains.Chains(), ", ")
}

func (t *GetEVMBalanceTool) Schema() tool.Schema {
	return tool.NewSchema(
		tool.Field{Name: "chain", Type: tool.TypeString, Description: "Chain name", Required: true, Enum: t.chains.Chains()},
		tool.Field{Name: "address", Type: tool.TypeString, Description: "0x address whose balance to read", Required: true},
		tool.Field{Name: "token", Type: tool.TypeString, Description: "Optional ERC-20 contract address; omit for the native coin"},
	)
}

func (t *GetEVMBalanceTool) BestPractices() string {
	return ""
}

func (t *GetEVMBalanceTool) Execute(ctx context.Context, args tool.Arguments) (*tool.Result, error) {
	client, err := t.chains.Get(args.String("chain"))
	if err != nil {
		return &tool.Result{Success: false, Error: err.Error()}, nil
	}

	var bal *evm.Balance
	if token := strings.TrimSpace(args.String("token")); token != "" {
		bal, err = client.TokenBalance(ctx, token, args.String("address"))
	} else {
		bal, err = client.NativeBalance(ctx, args.String("address"))
	}
	if errors.Is(err, evm.ErrInvalidAddress) {
		return &tool.Result{Success: false, Error: err.Error()}, nil
	}
	if err != nil {
		return nil, err
	}

	return &tool.Result{
		Success: true,
		Output:  fmt.Sprintf("Balance of %s on %s: %s %s", bal.Address, bal.Chain, bal.Formatted(), bal.Symbol),
		Data: map[string]any{
			"raw":      bal.Raw.String(),
			"decimals": bal.Decimals,
		},
	}, nil
}
