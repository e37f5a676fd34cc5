package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete tradeagent configuration
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Agent       AgentConfig       `yaml:"agent"`
	Solana      SolanaConfig      `yaml:"solana"`
	Jupiter     JupiterConfig     `yaml:"jupiter"`
	Helius      HeliusConfig      `yaml:"helius"`
	DexScreener DexScreenerConfig `yaml:"dexscreener"`
	Swap        SwapConfig        `yaml:"swap"`
	Guard       GuardConfig       `yaml:"guard"`
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	MySQL       MySQLConfig       `yaml:"mysql"`
	EVM         EVMConfig         `yaml:"evm"`
	MCP         MCPConfig         `yaml:"mcp"`
	Hooks       HooksConfig       `yaml:"hooks"`
	Log         LogConfig         `yaml:"log"`

	// unset maps secret fields to the unset variable they referenced
	unset map[string]string
}

// LLMConfig selects the chat model
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AgentConfig contains loop and persona settings
type AgentConfig struct {
	MaxSteps       int    `yaml:"max_steps"`
	AvatarsDir     string `yaml:"avatars_dir"`
	DefaultPersona string `yaml:"default_persona"`
}

// SolanaConfig holds the trading wallet. PrivateKey is base58.
type SolanaConfig struct {
	RPCURL        string `yaml:"rpc_url"`
	PrivateKey    string `yaml:"private_key"`
	WalletAddress string `yaml:"wallet_address"`
}

type JupiterConfig struct {
	BaseURL       string        `yaml:"base_url"`
	TokensURL     string        `yaml:"tokens_url"`
	Timeout       time.Duration `yaml:"timeout"`
	TokenCacheTTL time.Duration `yaml:"token_cache_ttl"`
}

type HeliusConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type DexScreenerConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SwapConfig tunes the swap retry loop
type SwapConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	SlippageBps int           `yaml:"slippage_bps"`
	ExplorerURL string        `yaml:"explorer_url"`
	// LockAccounts serializes swaps signed by the same wallet
	LockAccounts bool `yaml:"lock_accounts"`
	// RetryUnconfirmed retries broadcasts whose outcome is unknown
	RetryUnconfirmed bool `yaml:"retry_unconfirmed"`
}

// GuardConfig limits what the model may spend. Zero means no limit.
type GuardConfig struct {
	MaxAmount    int64            `yaml:"max_amount"`
	PerMint      map[string]int64 `yaml:"per_mint"`
	BlockedMints []string         `yaml:"blocked_mints"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// RedisConfig enables the transcript archive when Addr is set
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// MySQLConfig enables the swap journal when DSN is set
type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type EVMConfig struct {
	Chains []EVMChainConfig `yaml:"chains"`
}

type EVMChainConfig struct {
	Name     string `yaml:"name"`
	RPCURL   string `yaml:"rpc_url"`
	Symbol   string `yaml:"symbol"`
	Decimals int    `yaml:"decimals"`
}

// HooksConfig contains hook-related settings
type HooksConfig struct {
	// ToolConfirm enables user confirmation before specified tools (chat mode only)
	ToolConfirm []string `yaml:"tool_confirm"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MCPConfig contains MCP-specific settings
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig defines a single MCP server
type MCPServerConfig struct {
	Name      string            `yaml:"name"`      // Unique server identifier
	Transport string            `yaml:"transport"` // "stdio" (only supported initially)
	Command   string            `yaml:"command"`   // Executable to run
	Args      []string          `yaml:"args"`      // Command arguments
	Env       map[string]string `yaml:"env"`       // Environment variables with ${VAR} support
	Disabled  bool              `yaml:"disabled"`  // Skip this server if true
}

// Default returns the configuration used when no file sets a value
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:       "gpt-4-turbo-preview",
			Temperature: 0,
			MaxTokens:   4096,
		},
		Agent: AgentConfig{
			MaxSteps:       10,
			AvatarsDir:     "./avatars",
			DefaultPersona: "Misha",
		},
		Solana: SolanaConfig{
			RPCURL: "https://api.mainnet-beta.solana.com",
		},
		Jupiter: JupiterConfig{
			BaseURL:       "https://quote-api.jup.ag/v6",
			TokensURL:     "https://tokens.jup.ag/tokens?tags=verified",
			Timeout:       15 * time.Second,
			TokenCacheTTL: 10 * time.Minute,
		},
		Helius: HeliusConfig{
			BaseURL: "https://api.helius.xyz/v0",
		},
		DexScreener: DexScreenerConfig{
			BaseURL: "https://api.dexscreener.com",
		},
		Swap: SwapConfig{
			MaxRetries:  3,
			RetryDelay:  5 * time.Second,
			SlippageBps: 1,
			ExplorerURL: "https://explorer.solana.com/tx/",
		},
		Server: ServerConfig{
			Addr:            ":8000",
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Redis: RedisConfig{
			TTL: 7 * 24 * time.Hour,
		},
		MySQL: MySQLConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads and parses the YAML config file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.expandSecrets()
	cfg.ApplyEnvFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SearchPaths lists the locations LoadWithDefaults tries, in order
func SearchPaths() []string {
	locations := []string{
		"./tradeagent.yaml",
		"./configs/tradeagent.yaml",
	}

	// Add user config directory if available
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "tradeagent", "tradeagent.yaml"))
	}

	// Add system-wide config
	return append(locations, "/etc/tradeagent/tradeagent.yaml")
}

// LoadWithDefaults loads config with fallback to default locations.
// It returns the path used, or "" when no file was found.
func LoadWithDefaults() (*Config, string, error) {
	for _, loc := range SearchPaths() {
		if _, err := os.Stat(loc); err == nil {
			cfg, err := Load(loc)
			return cfg, loc, err
		}
	}

	// No config found - defaults plus environment (not an error)
	cfg := Default()
	cfg.ApplyEnvFallbacks()
	return cfg, "", cfg.Validate()
}

// ApplyEnvFallbacks fills unset secrets from the conventional environment variables
func (c *Config) ApplyEnvFallbacks() {
	fallback := func(key string, dst *string, names ...string) {
		if *dst != "" {
			return
		}
		for _, n := range names {
			if v := os.Getenv(n); v != "" {
				*dst = v
				delete(c.unset, key)
				return
			}
		}
	}
	fallback("llm.api_key", &c.LLM.APIKey, "OPENAI_API_KEY")
	fallback("llm.base_url", &c.LLM.BaseURL, "OPENAI_API_BASE_URL")
	fallback("solana.private_key", &c.Solana.PrivateKey, "SOLANA_PRIVATE_KEY")
	fallback("solana.wallet_address", &c.Solana.WalletAddress, "SOLANA_ADDRESS")
	fallback("helius.api_key", &c.Helius.APIKey, "HELIUS_API_KEY")
}

// Validate checks config correctness
func (c *Config) Validate() error {
	if c.Agent.MaxSteps < 1 {
		return fmt.Errorf("agent.max_steps must be at least 1")
	}
	if c.Swap.MaxRetries < 1 {
		return fmt.Errorf("swap.max_retries must be at least 1")
	}
	if c.Swap.RetryDelay < 0 {
		return fmt.Errorf("swap.retry_delay cannot be negative")
	}
	if c.Swap.SlippageBps < 0 || c.Swap.SlippageBps > 10000 {
		return fmt.Errorf("swap.slippage_bps must be between 0 and 10000")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2")
	}
	if c.Guard.MaxAmount < 0 {
		return fmt.Errorf("guard.max_amount cannot be negative")
	}
	for mint, limit := range c.Guard.PerMint {
		if limit < 0 {
			return fmt.Errorf("guard.per_mint[%s] cannot be negative", mint)
		}
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unsupported log format: %s (use 'console' or 'json')", c.Log.Format)
	}

	chains := make(map[string]bool)
	for i, ch := range c.EVM.Chains {
		if ch.Name == "" {
			return fmt.Errorf("evm chain #%d: name cannot be empty", i+1)
		}
		if chains[ch.Name] {
			return fmt.Errorf("duplicate evm chain: %s", ch.Name)
		}
		chains[ch.Name] = true
		if ch.RPCURL == "" {
			return fmt.Errorf("evm chain %s: rpc_url is required", ch.Name)
		}
	}

	// Check for duplicate server names
	names := make(map[string]bool)
	for i, server := range c.MCP.Servers {
		if server.Name == "" {
			return fmt.Errorf("server #%d: name cannot be empty", i+1)
		}

		if names[server.Name] {
			return fmt.Errorf("duplicate server name: %s", server.Name)
		}
		names[server.Name] = true

		// Validate server config
		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", server.Name, err)
		}
	}

	return nil
}

// RequireTrading checks the settings needed to sign and value swaps
func (c *Config) RequireTrading() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("OpenAI API key required (set llm.api_key, OPENAI_API_KEY or --api-key)%s", c.unsetHint("llm.api_key"))
	}
	if c.Solana.PrivateKey == "" {
		return fmt.Errorf("wallet key required (set solana.private_key or SOLANA_PRIVATE_KEY)%s", c.unsetHint("solana.private_key"))
	}
	if c.Helius.APIKey == "" {
		return fmt.Errorf("helius API key required for wallet balances (set helius.api_key or HELIUS_API_KEY)%s", c.unsetHint("helius.api_key"))
	}
	return nil
}

// Validate checks a single server config
func (s *MCPServerConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	// Validate server name matches OpenAI tool name requirements
	// Pattern: ^[a-zA-Z0-9_-]+$
	for _, ch := range s.Name {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-') {
			return fmt.Errorf("server name '%s' contains invalid character '%c' (only alphanumeric, underscore, and hyphen allowed)", s.Name, ch)
		}
	}

	if s.Transport == "" {
		return fmt.Errorf("transport is required")
	}

	if s.Transport != "stdio" {
		return fmt.Errorf("unsupported transport: %s (only 'stdio' is supported)", s.Transport)
	}

	if s.Command == "" {
		return fmt.Errorf("command is required")
	}

	return nil
}
