package conversation

import (
	"context"
	"sync"
	"testing"

	"tradeagent/internal/llm"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryArchive struct {
	mu    sync.Mutex
	saved map[string][]Turn
	err   error
}

func (m *memoryArchive) Save(ctx context.Context, id string, t Turn) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		m.saved = make(map[string][]Turn)
	}
	m.saved[id] = append(m.saved[id], t)
	return nil
}

func (m *memoryArchive) Load(ctx context.Context, id string) ([]Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[id], nil
}

func TestState_AppendPreservesOrder(t *testing.T) {
	s := New("c1", nil)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "A", "a"))
	require.NoError(t, s.Append(ctx, "B", "b"))

	assert.Equal(t, []Turn{{"A", "a"}, {"B", "b"}}, s.Turns())
	assert.Equal(t, 2, s.Len())
}

func TestState_TurnsIsACopy(t *testing.T) {
	s := FromTurns("c1", []Turn{{"A", "a"}})

	turns := s.Turns()
	turns[0].Human = "mutated"

	assert.Equal(t, "A", s.Turns()[0].Human)
}

func TestState_ArchiveReceivesTurns(t *testing.T) {
	archive := &memoryArchive{}
	s := New("c1", archive)

	require.NoError(t, s.Append(context.Background(), "buy", "bought"))

	loaded, err := archive.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, []Turn{{"buy", "bought"}}, loaded)
}

func TestState_ArchiveFailureKeepsTurn(t *testing.T) {
	s := New("c1", &memoryArchive{err: errors.New("redis down")})

	err := s.Append(context.Background(), "buy", "bought")
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
}

func TestState_SeparateConversationsDoNotShare(t *testing.T) {
	a := New("a", nil)
	b := New("b", nil)

	require.NoError(t, a.Append(context.Background(), "x", "y"))

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
}

func TestMessages(t *testing.T) {
	msgs := Messages([]Turn{{"hi", "hello"}, {"trade", "done"}})

	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "done", msgs[3].Content)
}
