package main

import (
	"fmt"
	"os"
	"strings"

	"tradeagent/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tradeagent",
		Short: "Conversational Solana trading agent",
		Long:  "A language-model agent that inspects a Solana wallet, researches tokens and executes Jupiter swaps",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlags(cmd.Flags())
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: search ./tradeagent.yaml, ./configs, ~/.config/tradeagent, /etc/tradeagent)")
	flags.String("api-key", "", "OpenAI API key")
	flags.String("api-base-url", "", "OpenAI API base URL")
	flags.String("model", "", "Model to use")
	flags.Float32("temperature", 0, "Sampling temperature")
	flags.Int("max-steps", 0, "Maximum model calls per run")
	flags.String("avatars-dir", "", "Directory holding persona avatars")
	flags.String("log-level", "", "Log level (debug, info, error)")
	flags.String("log-format", "", "Log format (console, json)")
	flags.Bool("verbose", false, "Enable verbose output (debug mode)")
	flags.Bool("no-color", false, "Disable colored output")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the WebSocket and HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address")

	chatCmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the agent in the terminal",
		Long:  "Runs one message when given, otherwise reads messages from stdin until EOF",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runChat,
	}
	chatCmd.Flags().String("avatar", "", "Persona to chat with")

	rootCmd.AddCommand(serveCmd, chatCmd)

	viper.SetEnvPrefix("tradeagent")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the YAML config and lays flag and TRADEAGENT_* values over it
func loadConfig() (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if p := viper.GetString("config"); p != "" {
		cfg, err = config.Load(p)
		path = p
	} else {
		cfg, path, err = config.LoadWithDefaults()
	}
	if err != nil {
		return nil, "", err
	}

	if viper.IsSet("api-key") {
		cfg.LLM.APIKey = viper.GetString("api-key")
	}
	if viper.IsSet("api-base-url") {
		cfg.LLM.BaseURL = viper.GetString("api-base-url")
	}
	if viper.IsSet("model") {
		cfg.LLM.Model = viper.GetString("model")
	}
	if viper.IsSet("temperature") {
		cfg.LLM.Temperature = float32(viper.GetFloat64("temperature"))
	}
	if viper.IsSet("max-steps") {
		cfg.Agent.MaxSteps = viper.GetInt("max-steps")
	}
	if viper.IsSet("avatars-dir") {
		cfg.Agent.AvatarsDir = viper.GetString("avatars-dir")
	}
	if viper.IsSet("addr") {
		cfg.Server.Addr = viper.GetString("addr")
	}
	if viper.IsSet("log-level") {
		cfg.Log.Level = viper.GetString("log-level")
	}
	if viper.IsSet("log-format") {
		cfg.Log.Format = viper.GetString("log-format")
	}
	if viper.GetBool("verbose") {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, path, nil
}
