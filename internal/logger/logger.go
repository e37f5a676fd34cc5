package logger

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level represents the log level
type Level int

const (
	LevelDebug Level = iota // Debug information (only shown with --verbose)
	LevelInfo               // Important steps
	LevelTool               // Tool call related
	LevelAgent              // Agent response
	LevelError              // Error messages
)

// Format selects the output encoding
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Logger provides structured logging for the trading agent.
// It keeps a small domain API (tool calls, sessions) on top of zerolog.
type Logger struct {
	zl    zerolog.Logger
	level Level
}

// NewLogger creates a console Logger writing to w
func NewLogger(w io.Writer, level Level) *Logger {
	return New(w, level, FormatConsole, false)
}

// New creates a Logger with explicit format and color settings
func New(w io.Writer, level Level, format Format, noColor bool) *Logger {
	if w == nil {
		w = os.Stdout
	}

	out := w
	if format != FormatJSON {
		out = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    noColor,
			TimeFormat: "15:04:05",
		}
	}

	zl := zerolog.New(out).Level(level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl, level: level}
}

// Nop returns a Logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop(), level: LevelError}
}

// With returns a child logger carrying an extra field
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger(), level: l.level}
}

// Zerolog exposes the underlying logger for packages that log structured events directly
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

func (lv Level) zerolog() zerolog.Level {
	switch lv {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs debug information (only shown in verbose mode)
func (l *Logger) Debug(format string, args ...any) {
	l.zl.Debug().Msgf(format, args...)
}

// Info logs general information
func (l *Logger) Info(format string, args ...any) {
	l.zl.Info().Msgf(format, args...)
}

// Warn logs recoverable problems
func (l *Logger) Warn(format string, args ...any) {
	l.zl.Warn().Msgf(format, args...)
}

// Error logs error messages
func (l *Logger) Error(format string, args ...any) {
	l.zl.Error().Msgf(format, args...)
}

// AgentResponse logs the agent's response
func (l *Logger) AgentResponse(content string) {
	if l.level <= LevelAgent {
		l.zl.Info().Str("kind", "agent_response").Msg(content)
	}
}

// ToolCall logs a tool call with its parameters
func (l *Logger) ToolCall(toolName string, params string) {
	if l.level <= LevelTool {
		l.zl.Info().
			Str("kind", "tool_call").
			Str("tool", toolName).
			Str("params", compactJSON(params)).
			Msg("tool call")
	}
}

// ToolResult logs a tool execution result
func (l *Logger) ToolResult(toolName string, success bool, output string, duration time.Duration) {
	if l.level > LevelTool {
		return
	}

	// Limit output to maximum 2 lines and 500 characters
	const maxLines = 2
	const maxLength = 500

	display := output
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	if len(lines) > maxLines {
		display = strings.Join(lines[:maxLines], "\n") + "\n..."
	}
	if len(display) > maxLength {
		display = display[:maxLength] + "..."
	}

	ev := l.zl.Info()
	if !success {
		ev = l.zl.Warn()
	}
	ev.Str("kind", "tool_result").
		Str("tool", toolName).
		Bool("success", success).
		Dur("duration", duration).
		Str("output", display).
		Msg("tool result")
}

// SessionStart logs the beginning of an agent session
func (l *Logger) SessionStart(task string) {
	l.zl.Info().Str("kind", "session_start").Str("task", task).Msg("session started")
}

// SessionEnd logs the completion of an agent session with statistics
func (l *Logger) SessionEnd(duration time.Duration, toolCallCount int) {
	l.zl.Info().
		Str("kind", "session_end").
		Dur("duration", duration.Round(time.Millisecond)).
		Int("tool_calls", toolCallCount).
		Msg("session completed")
}

// Progress logs the current step out of the step budget
func (l *Logger) Progress(current, total int, message string) {
	l.zl.Debug().Int("step", current).Int("max_steps", total).Msg(message)
}

// compactJSON keeps short JSON as-is and re-encodes long JSON without whitespace
func compactJSON(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 80 {
		return trimmed
	}

	var obj any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return trimmed
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return trimmed
	}
	return string(b)
}
