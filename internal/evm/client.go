// Package evm reads native and ERC-20 balances from EVM compatible chains.
package evm

import (
	"context"
	"math/big"
	"sort"
	"strings"
	"sync"

	"tradeagent/internal/redact"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

var (
	ErrUnknownChain   = errors.New("unknown chain")
	ErrInvalidAddress = errors.New("invalid address")
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"type":"function"}
]`

var parsedERC20 = mustParseABI(erc20ABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}

// ChainConfig describes one EVM chain
type ChainConfig struct {
	Name     string
	RPCURL   string
	Symbol   string
	Decimals int
}

// Backend is the subset of ethclient used for balance reads
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call gethcore.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Balance is an amount in the smallest unit together with its scale
type Balance struct {
	Chain    string
	Address  string
	Token    string
	Symbol   string
	Raw      *big.Int
	Decimals int
}

// Formatted renders the balance in whole units
func (b Balance) Formatted() string {
	return FormatUnits(b.Raw, b.Decimals)
}

// Client reads balances from one chain
type Client struct {
	cfg     ChainConfig
	backend Backend
	closer  func()
}

// Dial connects to the chain's RPC endpoint
func Dial(ctx context.Context, cfg ChainConfig) (*Client, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.Errorf("chain %s has no rpc url", cfg.Name)
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, errors.Wrapf(redact.Error(err), "dial %s", cfg.Name)
	}
	c := NewClient(cfg, eth)
	c.closer = eth.Close
	return c, nil
}

// NewClient wraps an existing backend
func NewClient(cfg ChainConfig, backend Backend) *Client {
	if cfg.Decimals == 0 {
		cfg.Decimals = 18
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "ETH"
	}
	return &Client{cfg: cfg, backend: backend}
}

func (c *Client) Name() string { return c.cfg.Name }

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// NativeBalance returns the latest native balance of address
func (c *Client) NativeBalance(ctx context.Context, address string) (*Balance, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}
	wei, err := c.backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, errors.Wrapf(redact.Error(err), "balance on %s", c.cfg.Name)
	}
	return &Balance{
		Chain:    c.cfg.Name,
		Address:  addr.Hex(),
		Symbol:   c.cfg.Symbol,
		Raw:      wei,
		Decimals: c.cfg.Decimals,
	}, nil
}

// TokenBalance returns the ERC-20 balance of address for the token contract
func (c *Client) TokenBalance(ctx context.Context, token, address string) (*Balance, error) {
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return nil, err
	}
	owner, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	out, err := c.call(ctx, tokenAddr, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	raw, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("unexpected balanceOf result %T", out[0])
	}

	bal := &Balance{
		Chain:    c.cfg.Name,
		Address:  owner.Hex(),
		Token:    tokenAddr.Hex(),
		Symbol:   tokenAddr.Hex(),
		Raw:      raw,
		Decimals: 18,
	}

	// decimals and symbol are optional in ERC-20
	if out, err := c.call(ctx, tokenAddr, "decimals"); err == nil {
		if d, ok := out[0].(uint8); ok {
			bal.Decimals = int(d)
		}
	}
	if out, err := c.call(ctx, tokenAddr, "symbol"); err == nil {
		if s, ok := out[0].(string); ok && s != "" {
			bal.Symbol = s
		}
	}
	return bal, nil
}

func (c *Client) call(ctx context.Context, to common.Address, method string, args ...any) ([]any, error) {
	data, err := parsedERC20.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}
	res, err := c.backend.CallContract(ctx, gethcore.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, errors.Wrapf(redact.Error(err), "call %s on %s", method, c.cfg.Name)
	}
	out, err := parsedERC20.Unpack(method, res)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	if len(out) == 0 {
		return nil, errors.Errorf("empty %s result", method)
	}
	return out, nil
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	return common.HexToAddress(s), nil
}

// FormatUnits renders amount / 10^decimals without trailing zeros
func FormatUnits(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	if decimals <= 0 {
		return amount.String()
	}
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	s := new(big.Rat).SetFrac(amount, denom).FloatString(decimals)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

// Registry holds one client per configured chain
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// DialAll connects every configured chain
func DialAll(ctx context.Context, chains []ChainConfig) (*Registry, error) {
	r := NewRegistry()
	for _, cfg := range chains {
		c, err := Dial(ctx, cfg)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Add(c)
	}
	return r, nil
}

func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[strings.ToLower(c.Name())] = c
}

// Get looks up a chain by case-insensitive name
func (r *Registry) Get(name string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownChain, "%s", name)
	}
	return c, nil
}

// Chains returns the configured chain names, sorted
func (r *Registry) Chains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for _, c := range r.clients {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clients {
		c.Close()
	}
	r.clients = make(map[string]*Client)
}
