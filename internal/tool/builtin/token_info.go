package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"tradeagent/internal/jupiter"
	"tradeagent/internal/tool"

	"github.com/pkg/errors"
)

// TokenFinder looks up listed tokens by name or symbol
type TokenFinder interface {
	FindToken(ctx context.Context, nameOrSymbol string) (*jupiter.Token, error)
}

type GetTokenInfoTool struct {
	tokens TokenFinder
}

func NewGetTokenInfoTool(tokens TokenFinder) *GetTokenInfoTool {
	return &GetTokenInfoTool{tokens: tokens}
}

func (t *GetTokenInfoTool) Name() string {
	return "GetTokenInfo"
}

func (t *GetTokenInfoTool) Description() string {
	return "Get information about a verified token on Solana: mint address, symbol, name and decimals. Unverified tokens are not listed."
}

func (t *GetTokenInfoTool) Schema() tool.Schema {
	return tool.NewSchema(
		tool.Field{Name: "token_name_or_symbol", Type: tool.TypeString, Description: "The symbol or the name of the token to get information about", Required: true},
	)
}

func (t *GetTokenInfoTool) BestPractices() string {
	return ""
}

func (t *GetTokenInfoTool) Execute(ctx context.Context, args tool.Arguments) (*tool.Result, error) {
	query := args.String("token_name_or_symbol")

	token, err := t.tokens.FindToken(ctx, query)
	if errors.Is(err, jupiter.ErrTokenNotFound) {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("No token named %q was found on Solana", query),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(token)
	if err != nil {
		return nil, errors.Wrap(err, "encode token")
	}

	return &tool.Result{
		Success: true,
		Output:  string(out),
		Data:    map[string]any{"address": token.Address, "decimals": token.Decimals},
	}, nil
}
