package main

import (
	"context"
	"io"
	"strings"

	"tradeagent/internal/agent"
	"tradeagent/internal/config"
	"tradeagent/internal/conversation"
	"tradeagent/internal/evm"
	"tradeagent/internal/hook"
	"tradeagent/internal/hook/handlers"
	"tradeagent/internal/jupiter"
	"tradeagent/internal/llm/openai"
	"tradeagent/internal/logger"
	"tradeagent/internal/mcp"
	"tradeagent/internal/solana"
	"tradeagent/internal/store/mysql"
	"tradeagent/internal/swap"
	"tradeagent/internal/tool"
	"tradeagent/internal/tool/builtin"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

// app holds every long-lived component built from the config
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *tool.Registry
	executor *tool.Executor
	hooks    *hook.Manager
	factory  *agent.DefaultFactory
	archive  conversation.Archive

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newLogger(cfg config.LogConfig, w io.Writer, noColor bool) *logger.Logger {
	level := logger.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = logger.LevelDebug
	case "error":
		level = logger.LevelError
	}
	return logger.New(w, level, logger.Format(cfg.Format), noColor)
}

// buildApp wires the trading stack. Optional backends (MySQL, Redis, EVM
// chains, MCP servers) are only connected when configured.
func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	for _, ref := range cfg.UnsetReferences() {
		log.Warn("config references an unset variable: %s", ref)
	}
	if err := cfg.RequireTrading(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	signer, err := solana.NewSigner(cfg.Solana.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "load wallet key")
	}
	wallet := cfg.Solana.WalletAddress
	if wallet == "" {
		wallet = signer.PublicKey()
	}
	log.Info("Trading wallet %s", wallet)

	rpcClient := rpc.New(cfg.Solana.RPCURL)
	a.closers = append(a.closers, func() { _ = rpcClient.Close() })

	jup := jupiter.NewClient(jupiter.Config{
		BaseURL:       cfg.Jupiter.BaseURL,
		TokensURL:     cfg.Jupiter.TokensURL,
		UserPublicKey: wallet,
		Timeout:       cfg.Jupiter.Timeout,
		TokenCacheTTL: cfg.Jupiter.TokenCacheTTL,
	})
	balances := solana.NewBalanceReader(rpcClient, solana.BalanceConfig{
		HeliusURL:    cfg.Helius.BaseURL,
		HeliusAPIKey: cfg.Helius.APIKey,
		Timeout:      cfg.Jupiter.Timeout,
	})

	swapOpts := []swap.Option{swap.WithLogger(log.With("component", "swap"))}
	if cfg.MySQL.DSN != "" {
		journal, err := mysql.Open(ctx, mysql.Config{
			DSN:             cfg.MySQL.DSN,
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		}, log)
		if err != nil {
			return nil, errors.Wrap(err, "open swap journal")
		}
		a.closers = append(a.closers, func() { _ = journal.Close() })
		swapOpts = append(swapOpts, swap.WithRecorder(journal))
		log.Info("Swap journal enabled")
	}

	swaps := swap.NewExecutor(jup, jup, signer, solana.NewBroadcaster(rpcClient), swap.Config{
		MaxRetries:       cfg.Swap.MaxRetries,
		RetryDelay:       cfg.Swap.RetryDelay,
		SlippageBps:      cfg.Swap.SlippageBps,
		ExplorerURL:      cfg.Swap.ExplorerURL,
		LockAccounts:     cfg.Swap.LockAccounts,
		RetryUnconfirmed: cfg.Swap.RetryUnconfirmed,
	}, swapOpts...)

	valuator := builtin.NewValuator(wallet, balances, jup, jup)

	a.registry = tool.NewRegistry()
	for _, t := range []tool.Tool{
		builtin.NewExecuteSwapTool(swaps),
		builtin.NewGetTokenInfoTool(jup),
		builtin.NewGetWalletBalanceTool(valuator),
		builtin.NewGetSOLWalletBalanceTool(valuator),
		builtin.NewNavigateURLTool(cfg.Jupiter.Timeout),
		builtin.NewTrendingCoinsTool(cfg.DexScreener.BaseURL, cfg.Jupiter.Timeout),
	} {
		if err := a.registry.Register(t); err != nil {
			return nil, err
		}
	}

	if len(cfg.EVM.Chains) > 0 {
		chains := make([]evm.ChainConfig, 0, len(cfg.EVM.Chains))
		for _, c := range cfg.EVM.Chains {
			chains = append(chains, evm.ChainConfig{Name: c.Name, RPCURL: c.RPCURL, Symbol: c.Symbol, Decimals: c.Decimals})
		}
		reg, err := evm.DialAll(ctx, chains)
		if err != nil {
			return nil, errors.Wrap(err, "dial evm chains")
		}
		a.closers = append(a.closers, reg.Close)
		if err := a.registry.Register(builtin.NewGetEVMBalanceTool(reg)); err != nil {
			return nil, err
		}
		log.Info("EVM chains: %s", strings.Join(reg.Chains(), ", "))
	}

	if len(cfg.MCP.Servers) > 0 {
		manager := mcp.NewManager(a.registry, log.With("component", "mcp"))
		if err := manager.Initialize(ctx, cfg.MCP); err != nil {
			log.Warn("MCP initialization failed: %v", err)
		}
		a.closers = append(a.closers, func() { _ = manager.Close() })
		log.Info("Connected %d MCP servers", manager.ServerCount())
	}

	a.hooks = hook.NewManager()
	a.hooks.Register(
		handlers.NewSpendLimitHandler(cfg.Guard.MaxAmount, cfg.Guard.PerMint, cfg.Guard.BlockedMints),
		handlers.NewAuditHandler(log),
	)

	a.executor = tool.NewExecutor(a.registry)
	a.executor.SetHookManager(a.hooks)

	a.archive = conversation.NopArchive{}
	if cfg.Redis.Addr != "" {
		archive, err := conversation.NewRedisArchive(ctx, conversation.RedisArchiveConfig{
			Address:  cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			return nil, errors.Wrap(err, "connect transcript archive")
		}
		a.closers = append(a.closers, func() { _ = archive.Close() })
		a.archive = archive
		log.Info("Transcript archive on %s", cfg.Redis.Addr)
	}

	llmClient := openai.NewClient(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	a.factory = agent.NewDefaultFactory(cfg.Agent.AvatarsDir, llmClient, a.executor, &agent.Config{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		MaxSteps:    cfg.Agent.MaxSteps,
	}, agent.WithLogger(log), agent.WithHooks(a.hooks))

	log.Info("Registered %d tools: %s", a.registry.Len(), strings.Join(a.registry.Names(), ", "))
	ok = true
	return a, nil
}
