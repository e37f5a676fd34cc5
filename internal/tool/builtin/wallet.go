package builtin

import (
	"context"
	"encoding/json"
	"strconv"

	"tradeagent/internal/jupiter"
	"tradeagent/internal/solana"
	"tradeagent/internal/swap"
	"tradeagent/internal/tool"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	// ValuationSlippageBps is the slippage used when pricing holdings in SOL
	ValuationSlippageBps = 15

	defaultValuationConcurrency = 4
)

// BalanceSource reads the holdings of a wallet
type BalanceSource interface {
	Balances(ctx context.Context, owner string) (*solana.WalletBalances, error)
}

// TokenIndex maps mint addresses to listed tokens
type TokenIndex interface {
	TokensByMint(ctx context.Context) (map[string]jupiter.Token, error)
}

// Holding is one wallet position with its value in SOL
type Holding struct {
	Mint     string  `json:"mint"`
	Amount   uint64  `json:"amount"`
	Name     string  `json:"name,omitempty"`
	Symbol   string  `json:"symbol,omitempty"`
	Decimals int     `json:"decimals"`
	SOLValue float64 `json:"solValue"`
}

// Valuator prices the wallet's listed holdings in SOL
type Valuator struct {
	owner       string
	balances    BalanceSource
	tokens      TokenIndex
	quoter      swap.Quoter
	concurrency int
}

func NewValuator(owner string, balances BalanceSource, tokens TokenIndex, quoter swap.Quoter) *Valuator {
	return &Valuator{
		owner:       owner,
		balances:    balances,
		tokens:      tokens,
		quoter:      quoter,
		concurrency: defaultValuationConcurrency,
	}
}

// Holdings returns every non-empty holding that appears in the token list.
// Native SOL is reported under the wrapped SOL mint. A holding whose quote
// fails is valued at zero.
func (v *Valuator) Holdings(ctx context.Context) ([]Holding, error) {
	bal, err := v.balances.Balances(ctx, v.owner)
	if err != nil {
		return nil, errors.Wrap(err, "read wallet balances")
	}
	listed, err := v.tokens.TokensByMint(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read token list")
	}

	positions := make([]solana.TokenBalance, 0, len(bal.Tokens)+1)
	positions = append(positions, bal.Tokens...)
	positions = append(positions, solana.TokenBalance{Mint: jupiter.WrappedSOLMint, Amount: bal.Lamports, Decimals: 9})

	holdings := make([]Holding, 0, len(positions))
	for _, p := range positions {
		meta, ok := listed[p.Mint]
		if !ok || p.Amount == 0 {
			continue
		}
		holdings = append(holdings, Holding{
			Mint:     p.Mint,
			Amount:   p.Amount,
			Name:     meta.Name,
			Symbol:   meta.Symbol,
			Decimals: meta.Decimals,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i := range holdings {
		h := &holdings[i]
		if h.Mint == jupiter.WrappedSOLMint {
			h.SOLValue = float64(h.Amount) / solana.LamportsPerSOL
			continue
		}
		g.Go(func() error {
			var out uint64
			q, err := v.quoter.Quote(gctx, swap.Request{
				FromMint:    h.Mint,
				ToMint:      jupiter.WrappedSOLMint,
				Amount:      h.Amount,
				SlippageBps: ValuationSlippageBps,
			})
			if err == nil && q != nil {
				out = q.OutAmount
			}
			h.SOLValue = float64(out) / solana.LamportsPerSOL
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return holdings, nil
}

// TotalSOL sums the SOL value of all holdings
func (v *Valuator) TotalSOL(ctx context.Context) (float64, error) {
	holdings, err := v.Holdings(ctx)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, h := range holdings {
		total += h.SOLValue
	}
	return total, nil
}

type GetWalletBalanceTool struct {
	valuator *Valuator
}

func NewGetWalletBalanceTool(v *Valuator) *GetWalletBalanceTool {
	return &GetWalletBalanceTool{valuator: v}
}

func (t *GetWalletBalanceTool) Name() string {
	return "GetWalletBalance"
}

func (t *GetWalletBalanceTool) Description() string {
	return "Get the balance of your wallet on Solana. Each token includes its amount in the smallest unit and its value in SOL (solValue)."
}

func (t *GetWalletBalanceTool) Schema() tool.Schema {
	return tool.NewSchema()
}

func (t *GetWalletBalanceTool) BestPractices() string {
	return ""
}

func (t *GetWalletBalanceTool) Execute(ctx context.Context, args tool.Arguments) (*tool.Result, error) {
	holdings, err := t.valuator.Holdings(ctx)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(holdings)
	if err != nil {
		return nil, errors.Wrap(err, "encode holdings")
	}
	return &tool.Result{
		Success: true,
		Output:  string(out),
		Data:    map[string]any{"holdings": len(holdings)},
	}, nil
}

type GetSOLWalletBalanceTool struct {
	valuator *Valuator
}

func NewGetSOLWalletBalanceTool(v *Valuator) *GetSOLWalletBalanceTool {
	return &GetSOLWalletBalanceTool{valuator: v}
}

func (t *GetSOLWalletBalanceTool) Name() string {
	return "GetSOLWalletBalance"
}

func (t *GetSOLWalletBalanceTool) Description() string {
	return "Get the balance of your wallet in SOL value"
}

func (t *GetSOLWalletBalanceTool) Schema() tool.Schema {
	return tool.NewSchema()
}

func (t *GetSOLWalletBalanceTool) BestPractices() string {
	return ""
}

func (t *GetSOLWalletBalanceTool) Execute(ctx context.Context, args tool.Arguments) (*tool.Result, error) {
	total, err := t.valuator.TotalSOL(ctx)
	if err != nil {
		return nil, err
	}
	return &tool.Result{
		Success: true,
		Output:  strconv.FormatFloat(total, 'f', -1, 64),
		Data:    map[string]any{"sol_value": total},
	}, nil
}
