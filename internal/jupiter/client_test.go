package jupiter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"tradeagent/internal/swap"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func newTestServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestQuote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, WrappedSOLMint, q.Get("inputMint"))
		assert.Equal(t, usdcMint, q.Get("outputMint"))
		assert.Equal(t, "1000000", q.Get("amount"))
		assert.Equal(t, "1", q.Get("slippageBps"))
		_, _ = w.Write([]byte(`{"inputMint":"` + WrappedSOLMint + `","inAmount":"1000000","outputMint":"` + usdcMint + `","outAmount":"152300","slippageBps":1,"priceImpactPct":"0.0001","routePlan":[]}`))
	})
	srv := newTestServer(t, mux)

	c := NewClient(Config{BaseURL: srv.URL})
	q, err := c.Quote(context.Background(), swap.Request{
		FromMint: WrappedSOLMint, ToMint: usdcMint, Amount: 1000000, SlippageBps: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1000000), q.InAmount)
	assert.Equal(t, uint64(152300), q.OutAmount)
	assert.Equal(t, "0.0001", q.PriceImpactPct)
	assert.Contains(t, string(q.Raw), "routePlan")
}

func TestQuote_HTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/quote", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Could not find any route"}`, http.StatusBadRequest)
	})
	srv := newTestServer(t, mux)

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Quote(context.Background(), swap.Request{FromMint: "a", ToMint: "b", Amount: 1})
	require.Error(t, err)

	var apiErr *apiError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, err.Error(), "Could not find any route")
}

func TestBuildSwap(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	mux := http.NewServeMux()
	mux.HandleFunc("/swap", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `"wallet-pub"`, string(body["userPublicKey"]))
		assert.JSONEq(t, `true`, string(body["wrapAndUnwrapSol"]))
		assert.JSONEq(t, `{"outAmount":"7"}`, string(body["quoteResponse"]))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"swapTransaction":      base64.StdEncoding.EncodeToString(payload),
			"lastValidBlockHeight": 100,
		})
	})
	srv := newTestServer(t, mux)

	c := NewClient(Config{BaseURL: srv.URL, UserPublicKey: "wallet-pub"})
	tx, err := c.BuildSwap(context.Background(), swap.Request{}, &swap.Quote{Raw: json.RawMessage(`{"outAmount":"7"}`)})
	require.NoError(t, err)
	assert.Equal(t, payload, tx)
}

func TestBuildSwap_RequiresQuoteAndWallet(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"})
	_, err := c.BuildSwap(context.Background(), swap.Request{}, nil)
	assert.Error(t, err)

	_, err = c.BuildSwap(context.Background(), swap.Request{}, &swap.Quote{Raw: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestFindToken(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/tokens", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[
			{"address":"` + usdcMint + `","name":"USD Coin","symbol":"USDC","decimals":6},
			{"address":"` + WrappedSOLMint + `","name":"Wrapped SOL","symbol":"SOL","decimals":9}
		]`))
	})
	srv := newTestServer(t, mux)

	c := NewClient(Config{TokensURL: srv.URL + "/tokens", TokenCacheTTL: time.Minute})

	tok, err := c.FindToken(context.Background(), "usd coin")
	require.NoError(t, err)
	assert.Equal(t, usdcMint, tok.Address)

	tok, err = c.FindToken(context.Background(), " sol ")
	require.NoError(t, err)
	assert.Equal(t, 9, tok.Decimals)

	_, err = c.FindToken(context.Background(), "BONK")
	assert.True(t, errors.Is(err, ErrTokenNotFound))

	assert.Equal(t, int32(1), hits.Load(), "token list should be cached")
}

func TestTokens_CacheExpires(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/tokens", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[]`))
	})
	srv := newTestServer(t, mux)

	now := time.Unix(1700000000, 0)
	c := NewClient(Config{TokensURL: srv.URL + "/tokens", TokenCacheTTL: time.Minute})
	c.now = func() time.Time { return now }

	_, err := c.Tokens(context.Background())
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, err = c.Tokens(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), hits.Load())
}
