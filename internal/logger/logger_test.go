package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_JSONToolResultTruncates(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, FormatJSON, true)

	log.ToolResult("GetWalletBalance", true, "a\nb\nc\nd", 20*time.Millisecond)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "tool_result", lines[0]["kind"])
	assert.Equal(t, "GetWalletBalance", lines[0]["tool"])
	assert.Equal(t, "a\nb\n...", lines[0]["output"])
}

func TestLogger_DebugHiddenAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, FormatJSON, true)

	log.Debug("hidden %d", 1)
	log.Info("shown %d", 2)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown 2", lines[0]["message"])
}

func TestLogger_ToolCallCompactsLongParams(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, FormatJSON, true)

	params := `{"from_token_mint": "So11111111111111111111111111111111111111112",   "amount": 5000}`
	log.ToolCall("ExecuteSwap", params)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, `{"amount":5000,"from_token_mint":"So11111111111111111111111111111111111111112"}`, lines[0]["params"])
}

func TestLogger_WithAddsField(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, FormatJSON, true).With("session", "abc")

	log.Info("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "abc", lines[0]["session"])
}
