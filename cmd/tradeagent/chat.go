package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"tradeagent/internal/conversation"
	"tradeagent/internal/hook"
	"tradeagent/internal/hook/handlers"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func runChat(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg.Log, os.Stderr, viper.GetBool("no-color"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	// Confirmation prompts and the chat prompt share one stdin reader
	in := bufio.NewReader(os.Stdin)
	if len(cfg.Hooks.ToolConfirm) > 0 {
		a.hooks.Register(handlers.NewToolConfirmHandlerWithIO(in, os.Stdout, cfg.Hooks.ToolConfirm...))
	}
	log.Debug("Tool hooks: %s", strings.Join(a.hooks.ListHandlers(hook.BeforeToolExecution), ", "))

	persona := viper.GetString("avatar")
	if persona == "" {
		persona = cfg.Agent.DefaultPersona
	}
	loop, err := a.factory.CreateLoop(persona)
	if err != nil {
		return err
	}

	state := conversation.New(uuid.NewString(), a.archive)
	ask := func(message string) error {
		answer, err := loop.Invoke(ctx, message, state.Turns())
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, answer)
		if err := state.Append(ctx, message, answer); err != nil {
			log.Warn("archive turn: %v", err)
		}
		return nil
	}

	if len(args) == 1 {
		return ask(args[0])
	}

	fmt.Fprintf(os.Stdout, "Chatting with %s. Ctrl-D to quit.\n", loop.Name())
	for {
		fmt.Fprint(os.Stdout, "> ")
		line, err := in.ReadString('\n')
		if message := strings.TrimSpace(line); message != "" {
			if askErr := ask(message); askErr != nil {
				log.Error("Agent execution failed: %v", askErr)
			}
		}
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(os.Stdout)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
