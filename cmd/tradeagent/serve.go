package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"tradeagent/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg.Log, os.Stdout, viper.GetBool("no-color"))
	if path != "" {
		log.Info("Loaded config from %s", path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		log.Error("Startup failed: %v", err)
		return err
	}
	defer a.Close()

	srv := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		AvatarsDir:      cfg.Agent.AvatarsDir,
		DefaultPersona:  cfg.Agent.DefaultPersona,
	}, a.factory, a.archive, log.With("component", "server"))

	return srv.Start(ctx)
}
