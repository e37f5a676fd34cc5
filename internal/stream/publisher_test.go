package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tradeagent/internal/agent"
	"tradeagent/internal/tool"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	frames []Frame
	failAt int // 1-based send that fails; 0 never
	sends  int
}

func (s *recordingSink) Send(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	if s.failAt > 0 && s.sends >= s.failAt {
		return errors.New("broken pipe")
	}
	s.frames = append(s.frames, f)
	return nil
}

func events() []agent.Event {
	inv := tool.Invocation{ToolName: "GetWalletBalance", CallID: "c1", Arguments: json.RawMessage(`{}`)}
	return []agent.Event{
		{Kind: agent.EventAction, Step: 1, Invocation: &inv, Message: "checking"},
		{Kind: agent.EventObservation, Step: 1, Invocation: &inv, Observation: "[]",
			Steps: []agent.ScratchStep{{Action: inv, Observation: "[]"}}},
		{Kind: agent.EventFinalAnswer, Step: 2, Text: "empty wallet"},
	}
}

func seqOf(evs []agent.Event, produced *int) func(func(agent.Event) bool) {
	return func(yield func(agent.Event) bool) {
		for _, ev := range evs {
			*produced++
			if !yield(ev) {
				return
			}
		}
	}
}

func TestPublisher_ForwardsInOrder(t *testing.T) {
	sink := &recordingSink{}
	p := NewPublisher(sink, nil)

	var produced int
	last := p.Drain(seqOf(events(), &produced))

	assert.Equal(t, agent.EventFinalAnswer, last.Kind)
	require.Len(t, sink.frames, 3)
	assert.Equal(t, TypeInternalThought, sink.frames[0].Type)
	assert.JSONEq(t, `{"tool":"GetWalletBalance","call_id":"c1","tool_input":{}}`, string(sink.frames[0].Action))
	assert.Equal(t, []string{"checking"}, sink.frames[0].Messages)
	require.Len(t, sink.frames[1].Steps, 1)
	assert.Equal(t, "[]", sink.frames[1].Steps[0].Observation)
	assert.Equal(t, TypeFinalAnswer, sink.frames[2].Type)
	assert.Equal(t, "empty wallet", sink.frames[2].Output)
}

func TestPublisher_DisconnectedDropsButRunContinues(t *testing.T) {
	sink := &recordingSink{failAt: 2}
	p := NewPublisher(sink, nil)

	var produced int
	last := p.Drain(seqOf(events(), &produced))

	assert.Equal(t, 3, produced, "the run must continue after the sink fails")
	assert.Equal(t, agent.EventFinalAnswer, last.Kind)
	assert.Len(t, sink.frames, 1)
	assert.Equal(t, 2, sink.sends, "no sends after the first failure")
	assert.False(t, p.Connected())

	sent, dropped := p.Stats()
	assert.Equal(t, 1, sent)
	assert.Equal(t, 2, dropped)
}

func TestPublisher_CloseIsNoop(t *testing.T) {
	sink := &recordingSink{}
	p := NewPublisher(sink, nil)
	p.Close()

	p.Publish(agent.Event{Kind: agent.EventFinalAnswer, Text: "x"})
	assert.Empty(t, sink.frames)
}

func TestFrameOf_TerminalKinds(t *testing.T) {
	f := FrameOf(agent.Event{Kind: agent.EventError, Err: errors.New("model call failed: timeout")})
	assert.Equal(t, TypeError, f.Type)
	assert.Contains(t, f.Output, "timeout")

	f = FrameOf(agent.Event{Kind: agent.EventBudgetExhausted})
	assert.Equal(t, TypeBudgetExhausted, f.Type)
	assert.NotEmpty(t, f.Output)
}

func TestFrameOf_MalformedArgumentsAreQuoted(t *testing.T) {
	inv := tool.Invocation{ToolName: "ExecuteSwap", Arguments: json.RawMessage(`{"amount":`)}
	f := FrameOf(agent.Event{Kind: agent.EventAction, Invocation: &inv})

	var decoded FrameAction
	require.NoError(t, json.Unmarshal(f.Action, &decoded))
	assert.Equal(t, `"{\"amount\":"`, string(decoded.ToolInput))
}

func TestWebSocketSink_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan Frame, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		sink := NewWebSocketSink(conn, time.Second)
		p := NewPublisher(sink, nil)
		var produced int
		p.Drain(seqOf(events(), &produced))
		_ = sink.Close()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.DialContext(context.Background(), url, nil)
	require.NoError(t, err)
	defer conn.Close()

	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		received <- f
	}
	close(received)

	var types []string
	for f := range received {
		types = append(types, f.Type)
	}
	assert.Equal(t, []string{TypeInternalThought, TypeInternalThought, TypeFinalAnswer}, types)
}

func TestWebSocketSink_SendAfterClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	errCh := make(chan error, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		sink := NewWebSocketSink(conn, time.Second)
		_ = sink.Close()
		errCh <- sink.Send(Frame{Type: TypeFinalAnswer})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.ErrorIs(t, <-errCh, ErrSinkClosed)
}
