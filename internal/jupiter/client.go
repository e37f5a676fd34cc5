// Package jupiter talks to the Jupiter aggregator: quotes, swap
// transaction building and the token list.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradeagent/internal/redact"
	"tradeagent/internal/swap"

	"github.com/pkg/errors"
)

const (
	DefaultBaseURL = "https://quote-api.jup.ag/v6"
	// DefaultTokensURL lists verified tokens only. Point TokensURL at
	// https://tokens.jup.ag/tokens_with_markets or a custom tag filter to widen it.
	DefaultTokensURL = "https://tokens.jup.ag/tokens?tags=verified"
	// WrappedSOLMint is the mint used to price everything in SOL
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
)

// Config describes the Jupiter endpoints
type Config struct {
	BaseURL   string
	TokensURL string
	// UserPublicKey is the wallet that signs built swaps
	UserPublicKey string
	Timeout       time.Duration
	TokenCacheTTL time.Duration
}

// Client implements swap.Quoter and swap.Builder over the Jupiter HTTP API
type Client struct {
	cfg  Config
	http *http.Client

	tokensMu  sync.Mutex
	tokens    []Token
	fetchedAt time.Time
	now       func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TokensURL == "" {
		cfg.TokensURL = DefaultTokensURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.TokenCacheTTL <= 0 {
		cfg.TokenCacheTTL = 10 * time.Minute
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
}

// quoteResponse is the subset of the quote document we read; the full
// document is kept verbatim for the swap call
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	SlippageBps    int    `json:"slippageBps"`
	PriceImpactPct string `json:"priceImpactPct"`
}

// Quote asks for the best route for req
func (c *Client) Quote(ctx context.Context, req swap.Request) (*swap.Quote, error) {
	q := url.Values{}
	q.Set("inputMint", req.FromMint)
	q.Set("outputMint", req.ToMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))

	raw, err := c.get(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/quote?"+q.Encode())
	if err != nil {
		return nil, errors.Wrap(err, "jupiter quote")
	}

	var qr quoteResponse
	if err := json.Unmarshal(raw, &qr); err != nil {
		return nil, errors.Wrap(err, "decode jupiter quote")
	}

	out, err := parseAmount(qr.OutAmount)
	if err != nil {
		return nil, errors.Wrap(err, "jupiter quote outAmount")
	}
	in, _ := parseAmount(qr.InAmount)

	return &swap.Quote{
		InputMint:      qr.InputMint,
		OutputMint:     qr.OutputMint,
		InAmount:       in,
		OutAmount:      out,
		SlippageBps:    qr.SlippageBps,
		PriceImpactPct: qr.PriceImpactPct,
		Raw:            raw,
	}, nil
}

type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// BuildSwap returns the unsigned serialized transaction for a quote
func (c *Client) BuildSwap(ctx context.Context, req swap.Request, quote *swap.Quote) ([]byte, error) {
	if quote == nil || len(quote.Raw) == 0 {
		return nil, errors.New("jupiter swap needs the raw quote document")
	}
	if c.cfg.UserPublicKey == "" {
		return nil, errors.New("jupiter swap needs the wallet public key")
	}

	body, err := json.Marshal(swapRequest{
		QuoteResponse:    quote.Raw,
		UserPublicKey:    c.cfg.UserPublicKey,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode swap request")
	}

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/swap", body)
	if err != nil {
		return nil, errors.Wrap(err, "jupiter swap")
	}

	var sr swapResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return nil, errors.Wrap(err, "decode jupiter swap")
	}
	if sr.SwapTransaction == "" {
		return nil, errors.New("jupiter swap returned no transaction")
	}

	tx, err := base64.StdEncoding.DecodeString(sr.SwapTransaction)
	if err != nil {
		return nil, errors.Wrap(err, "decode swap transaction")
	}
	return tx, nil
}

func parseAmount(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

// apiError is a non-2xx answer from Jupiter
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return "status " + strconv.Itoa(e.Status) + ": " + e.Body
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) post(ctx context.Context, u string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, redact.Error(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := string(raw)
		if len(body) > 300 {
			body = body[:300]
		}
		return nil, &apiError{Status: resp.StatusCode, Body: body}
	}
	return raw, nil
}
