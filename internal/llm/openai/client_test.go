package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tradeagent/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(raw, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ChatToolCall(t *testing.T) {
	var req map[string]any
	srv := newTestServer(t, `{
		"id": "1",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "GetWalletBalance", "arguments": "{}"}
				}]
			}
		}],
		"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
	}`, &req)

	c := NewClient("key", "gpt-4-turbo", srv.URL+"/v1")
	resp, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{llm.SystemMessage("persona"), llm.UserMessage("trade")},
		Tools: []*llm.ToolDefinition{{
			Type: "function",
			Function: &llm.FunctionDef{
				Name:       "GetWalletBalance",
				Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
			},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, llm.StopReasonToolCalls, resp.StopReason)
	require.True(t, resp.WantsTools())
	assert.Equal(t, "GetWalletBalance", resp.Message.ToolCalls[0].Function.Name)
	assert.Equal(t, "call_1", resp.Message.ToolCalls[0].ID)
	assert.Equal(t, 5, resp.Usage.TotalTokens)

	assert.Equal(t, "gpt-4-turbo", req["model"])
	tools, ok := req["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 1)
}

func TestClient_ChatFinalMessage(t *testing.T) {
	srv := newTestServer(t, `{
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "done"}}]
	}`, nil)

	c := NewClient("key", "gpt-4-turbo", srv.URL+"/v1")
	resp, err := c.Chat(context.Background(), &llm.ChatRequest{Messages: []llm.Message{llm.UserMessage("hi")}})
	require.NoError(t, err)

	assert.Equal(t, llm.StopReasonStop, resp.StopReason)
	assert.False(t, resp.WantsTools())
	assert.Equal(t, "done", resp.Message.Content)
}

func TestClient_ChatSendsZeroTemperature(t *testing.T) {
	var req map[string]any
	srv := newTestServer(t, `{
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "done"}}]
	}`, &req)

	c := NewClient("key", "gpt-4-turbo", srv.URL+"/v1")
	_, err := c.Chat(context.Background(), &llm.ChatRequest{Messages: []llm.Message{llm.UserMessage("hi")}, Temperature: 0})
	require.NoError(t, err)

	require.Contains(t, req, "temperature")
	assert.InDelta(t, 0, req["temperature"], 1e-9)

	_, err = c.Chat(context.Background(), &llm.ChatRequest{Messages: []llm.Message{llm.UserMessage("hi")}, Temperature: 0.7})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, req["temperature"], 1e-6)
}

func TestClient_ChatNoChoices(t *testing.T) {
	srv := newTestServer(t, `{"choices": []}`, nil)

	c := NewClient("key", "gpt-4-turbo", srv.URL+"/v1")
	_, err := c.Chat(context.Background(), &llm.ChatRequest{Messages: []llm.Message{llm.UserMessage("hi")}})
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestClient_ConvertToolMessage(t *testing.T) {
	c := NewClient("key", "m")
	msgs := c.convertMessages([]llm.Message{llm.ToolMessage("call_9", "ExecuteSwap", "ok")})

	require.Len(t, msgs, 1)
	assert.Equal(t, "tool", msgs[0].Role)
	assert.Equal(t, "call_9", msgs[0].ToolCallID)
	assert.Equal(t, "ExecuteSwap", msgs[0].Name)
}
