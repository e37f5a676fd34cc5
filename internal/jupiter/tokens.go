package jupiter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrTokenNotFound is returned when no listed token matches a lookup
var ErrTokenNotFound = errors.New("token not found")

// Token is one entry of the Jupiter token list
type Token struct {
	Address     string   `json:"address"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    int      `json:"decimals"`
	LogoURI     string   `json:"logoURI,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	DailyVolume float64  `json:"daily_volume,omitempty"`
}

// Tokens returns the token list, cached for TokenCacheTTL
func (c *Client) Tokens(ctx context.Context) ([]Token, error) {
	c.tokensMu.Lock()
	defer c.tokensMu.Unlock()

	if c.tokens != nil && c.now().Sub(c.fetchedAt) < c.cfg.TokenCacheTTL {
		return c.tokens, nil
	}

	raw, err := c.get(ctx, c.cfg.TokensURL)
	if err != nil {
		return nil, errors.Wrap(err, "jupiter token list")
	}

	var tokens []Token
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, errors.Wrap(err, "decode token list")
	}

	c.tokens = tokens
	c.fetchedAt = c.now()
	return tokens, nil
}

// FindToken matches a name or symbol, ignoring case and spaces
func (c *Client) FindToken(ctx context.Context, nameOrSymbol string) (*Token, error) {
	tokens, err := c.Tokens(ctx)
	if err != nil {
		return nil, err
	}

	needle := normalize(nameOrSymbol)
	if needle == "" {
		return nil, errors.Wrap(ErrTokenNotFound, "empty query")
	}
	for i := range tokens {
		if normalize(tokens[i].Name) == needle || normalize(tokens[i].Symbol) == needle {
			return &tokens[i], nil
		}
	}
	return nil, errors.Wrapf(ErrTokenNotFound, "%s", nameOrSymbol)
}

// TokensByMint indexes the token list by mint address
func (c *Client) TokensByMint(ctx context.Context) (map[string]Token, error) {
	tokens, err := c.Tokens(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Token, len(tokens))
	for _, t := range tokens {
		out[t.Address] = t
	}
	return out, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}
