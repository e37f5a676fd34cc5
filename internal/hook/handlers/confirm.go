package handlers

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"tradeagent/internal/hook"
)

// ToolConfirmHandler prompts the operator before executing selected tools.
// Used by the interactive chat command; the server never installs it.
type ToolConfirmHandler struct {
	reader    io.Reader
	writer    io.Writer
	toolNames map[string]bool // Only confirm these tools (empty = all)
}

// NewToolConfirmHandler creates a handler reading answers from stdin
func NewToolConfirmHandler(tools ...string) *ToolConfirmHandler {
	return NewToolConfirmHandlerWithIO(os.Stdin, os.Stdout, tools...)
}

// NewToolConfirmHandlerWithIO creates a handler with custom IO (for testing)
func NewToolConfirmHandlerWithIO(reader io.Reader, writer io.Writer, tools ...string) *ToolConfirmHandler {
	toolNames := make(map[string]bool)
	for _, t := range tools {
		toolNames[t] = true
	}
	return &ToolConfirmHandler{
		reader:    reader,
		writer:    writer,
		toolNames: toolNames,
	}
}

func (h *ToolConfirmHandler) Name() string {
	return "tool_confirm"
}

func (h *ToolConfirmHandler) Points() []hook.HookPoint {
	return []hook.HookPoint{hook.BeforeToolExecution}
}

func (h *ToolConfirmHandler) Priority() int {
	return 100
}

func (h *ToolConfirmHandler) Handle(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
	if len(h.toolNames) > 0 && !h.toolNames[data.ToolName] {
		return hook.AllowFeedback(), nil
	}

	params := data.GetString("params")

	fmt.Fprintf(h.writer, "\n\033[33m⚠️  Tool '%s' requires confirmation:\033[0m\n", data.ToolName)
	if params != "" {
		fmt.Fprintf(h.writer, "    Parameters: %s\n", params)
	}
	fmt.Fprintf(h.writer, "\nAllow? [y/N]: ")

	scanner := bufio.NewScanner(h.reader)
	if !scanner.Scan() {
		return hook.DenyFeedback("No input received"), nil
	}

	switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
	case "y", "yes":
		fmt.Fprintf(h.writer, "\033[32m✓ Allowed\033[0m\n\n")
		return hook.AllowFeedback(), nil
	default:
		fmt.Fprintf(h.writer, "\033[31m✗ Denied\033[0m\n\n")
		return hook.DenyFeedback("User denied tool execution"), nil
	}
}
