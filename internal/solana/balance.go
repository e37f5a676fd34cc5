package solana

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tradeagent/internal/redact"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

const (
	// LamportsPerSOL converts native balances
	LamportsPerSOL = 1_000_000_000

	DefaultHeliusURL = "https://api.helius.xyz/v0"
)

// TokenBalance is one SPL token held by the wallet
type TokenBalance struct {
	Mint         string `json:"mint"`
	Amount       uint64 `json:"amount"`
	Decimals     int    `json:"decimals"`
	TokenAccount string `json:"tokenAccount,omitempty"`
}

// WalletBalances is the native balance plus token holdings of a wallet
type WalletBalances struct {
	Lamports uint64
	Tokens   []TokenBalance
}

// SOL converts the native balance
func (w WalletBalances) SOL() float64 {
	return float64(w.Lamports) / LamportsPerSOL
}

// BalanceConfig configures the balance reader
type BalanceConfig struct {
	HeliusURL    string
	HeliusAPIKey string
	Timeout      time.Duration
}

// BalanceReader reads native balances over RPC and token holdings from
// the Helius balances endpoint
type BalanceReader struct {
	rpc  *rpc.Client
	cfg  BalanceConfig
	http *http.Client
}

func NewBalanceReader(client *rpc.Client, cfg BalanceConfig) *BalanceReader {
	if cfg.HeliusURL == "" {
		cfg.HeliusURL = DefaultHeliusURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &BalanceReader{rpc: client, cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// NativeBalance returns the finalized lamport balance of owner
func (r *BalanceReader) NativeBalance(ctx context.Context, owner string) (uint64, error) {
	pub, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid wallet address %q", owner)
	}
	res, err := r.rpc.GetBalance(ctx, pub, rpc.CommitmentFinalized)
	if err != nil {
		return 0, errors.Wrap(redact.Error(err), "get balance")
	}
	return res.Value, nil
}

type heliusBalances struct {
	NativeBalance uint64         `json:"nativeBalance"`
	Tokens        []TokenBalance `json:"tokens"`
}

// Balances returns the native balance and all token holdings of owner
func (r *BalanceReader) Balances(ctx context.Context, owner string) (*WalletBalances, error) {
	lamports, err := r.NativeBalance(ctx, owner)
	if err != nil {
		return nil, err
	}

	tokens, err := r.TokenBalances(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &WalletBalances{Lamports: lamports, Tokens: tokens}, nil
}

// TokenBalances lists non-empty SPL token holdings of owner
func (r *BalanceReader) TokenBalances(ctx context.Context, owner string) ([]TokenBalance, error) {
	if r.cfg.HeliusAPIKey == "" {
		return nil, errors.New("helius api key not configured")
	}

	u := strings.TrimRight(r.cfg.HeliusURL, "/") + "/addresses/" + url.PathEscape(owner) +
		"/balances?api-key=" + url.QueryEscape(r.cfg.HeliusAPIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(redact.Error(err), "helius balances")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read helius balances")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("helius balances: status %d", resp.StatusCode)
	}

	var hb heliusBalances
	if err := json.Unmarshal(raw, &hb); err != nil {
		return nil, errors.Wrap(err, "decode helius balances")
	}

	out := make([]TokenBalance, 0, len(hb.Tokens))
	for _, t := range hb.Tokens {
		if t.Amount == 0 {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
