package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tradeagent/internal/tool"

	"github.com/pkg/errors"
)

const (
	DefaultDexScreenerURL = "https://api.dexscreener.com"

	solanaChainID    = "solana"
	maxTrendingCoins = 10
)

type tokenBoost struct {
	ChainID      string  `json:"chainId"`
	TokenAddress string  `json:"tokenAddress"`
	TotalAmount  float64 `json:"totalAmount"`
	URL          string  `json:"url"`
}

type dexPair struct {
	BaseToken struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
}

// TrendingCoin is one boosted Solana token
type TrendingCoin struct {
	Mint        string  `json:"mint"`
	Name        string  `json:"name,omitempty"`
	Symbol      string  `json:"symbol,omitempty"`
	PriceUSD    string  `json:"priceUsd,omitempty"`
	Change24h   float64 `json:"priceChange24h"`
	Volume24h   float64 `json:"volume24h"`
	Boosts      float64 `json:"boosts"`
	ScreenerURL string  `json:"url,omitempty"`
}

// TrendingCoinsTool lists the most boosted Solana tokens on DexScreener
type TrendingCoinsTool struct {
	baseURL string
	client  *http.Client
}

func NewTrendingCoinsTool(baseURL string, timeout time.Duration) *TrendingCoinsTool {
	if baseURL == "" {
		baseURL = DefaultDexScreenerURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TrendingCoinsTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (t *TrendingCoinsTool) Name() string {
	return "GetTrendingCoinsSolana"
}

func (t *TrendingCoinsTool) Description() string {
	return "Get the current trending coins on Solana with their mint address, price and 24h change"
}

func (t *TrendingCoinsTool) Schema() tool.Schema {
	return tool.NewSchema()
}

func (t *TrendingCoinsTool) BestPractices() string {
	return ""
}

func (t *TrendingCoinsTool) Execute(ctx context.Context, args tool.Arguments) (*tool.Result, error) {
	coins, err := t.Trending(ctx)
	if err != nil {
		return &tool.Result{Success: false, Error: fmt.Sprintf("failed to load trending coins: %v", err)}, nil
	}
	if len(coins) == 0 {
		return &tool.Result{Success: true, Output: "No trending coins on Solana right now"}, nil
	}

	var sb strings.Builder
	for i, c := range coins {
		label := c.Symbol
		if label == "" {
			label = c.Mint
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, label)
		if c.Name != "" {
			fmt.Fprintf(&sb, " (%s)", c.Name)
		}
		fmt.Fprintf(&sb, " mint=%s", c.Mint)
		if c.PriceUSD != "" {
			fmt.Fprintf(&sb, " price=$%s change24h=%.2f%% volume24h=$%.0f", c.PriceUSD, c.Change24h, c.Volume24h)
		}
		sb.WriteString("\n")
	}

	return &tool.Result{
		Success: true,
		Output:  strings.TrimRight(sb.String(), "\n"),
		Data:    map[string]any{"count": len(coins)},
	}, nil
}

// Trending returns the top boosted Solana tokens, enriched with pair data
// when available
func (t *TrendingCoinsTool) Trending(ctx context.Context) ([]TrendingCoin, error) {
	var boosts []tokenBoost
	if err := t.getJSON(ctx, t.baseURL+"/token-boosts/top/v1", &boosts); err != nil {
		return nil, err
	}

	coins := make([]TrendingCoin, 0, maxTrendingCoins)
	seen := make(map[string]bool)
	for _, b := range boosts {
		if b.ChainID != solanaChainID || b.TokenAddress == "" || seen[b.TokenAddress] {
			continue
		}
		seen[b.TokenAddress] = true
		coins = append(coins, TrendingCoin{Mint: b.TokenAddress, Boosts: b.TotalAmount, ScreenerURL: b.URL})
		if len(coins) == maxTrendingCoins {
			break
		}
	}
	if len(coins) == 0 {
		return coins, nil
	}

	mints := make([]string, len(coins))
	for i, c := range coins {
		mints[i] = c.Mint
	}

	var pairs []dexPair
	if err := t.getJSON(ctx, t.baseURL+"/tokens/v1/"+solanaChainID+"/"+strings.Join(mints, ","), &pairs); err != nil {
		// names are a nice to have; the mints alone are still useful
		return coins, nil
	}

	// first pair per token is the most liquid one
	byMint := make(map[string]dexPair, len(pairs))
	for _, p := range pairs {
		if _, ok := byMint[p.BaseToken.Address]; !ok {
			byMint[p.BaseToken.Address] = p
		}
	}
	for i := range coins {
		p, ok := byMint[coins[i].Mint]
		if !ok {
			continue
		}
		coins[i].Name = p.BaseToken.Name
		coins[i].Symbol = p.BaseToken.Symbol
		coins[i].PriceUSD = p.PriceUSD
		coins[i].Change24h = p.PriceChange.H24
		coins[i].Volume24h = p.Volume.H24
	}
	return coins, nil
}

func (t *TrendingCoinsTool) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("dexscreener status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(body, out), "decode dexscreener response")
}
