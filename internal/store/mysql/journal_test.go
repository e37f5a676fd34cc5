package mysql

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"tradeagent/internal/swap"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("trader:secret@tcp(127.0.0.1:3306)/tradeagent")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	_, err = normalizeDSN("   ")
	assert.Error(t, err)

	_, err = normalizeDSN("no-slash-here")
	assert.Error(t, err)
}

func TestJournal_RecordDoesNotWaitForWrites(t *testing.T) {
	release := make(chan struct{})
	var (
		mu     sync.Mutex
		states []swap.State
	)
	j := newJournal(nil, nil, func(ctx context.Context, e entry) error {
		<-release
		mu.Lock()
		defer mu.Unlock()
		states = append(states, e.attempt.State)
		return nil
	})

	ctx := context.Background()
	req := swap.Request{FromMint: "A", ToMint: "B", Amount: 1}
	want := []swap.State{swap.StateQuoting, swap.StateBuilding, swap.StateSigning, swap.StateBroadcasting, swap.StateSucceeded}

	start := time.Now()
	for _, s := range want {
		j.RecordAttempt(ctx, "req-1", req, swap.Attempt{Number: 1, State: s})
	}
	assert.Less(t, time.Since(start), time.Second, "recording must not wait for the database")

	close(release)
	require.NoError(t, j.Sync(ctx))

	mu.Lock()
	assert.Equal(t, want, states, "transitions are written in order")
	mu.Unlock()

	require.NoError(t, j.Close())
	assert.NotPanics(t, func() {
		j.RecordAttempt(ctx, "req-1", req, swap.Attempt{Number: 2, State: swap.StateQuoting})
	})
	assert.NoError(t, j.Sync(ctx))
}

// TestJournal_RoundTrip needs a reachable MySQL, e.g.
// TRADEAGENT_TEST_MYSQL_DSN="root:root@tcp(127.0.0.1:3306)/tradeagent_test"
func TestJournal_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TRADEAGENT_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TRADEAGENT_TEST_MYSQL_DSN not set")
	}

	ctx := context.Background()
	j, err := Open(ctx, Config{DSN: dsn, MaxOpenConns: 2}, nil)
	require.NoError(t, err)
	defer j.Close()

	requestID := uuid.NewString()
	req := swap.Request{FromMint: "A", ToMint: "B", Amount: 1000, SlippageBps: 1}
	start := time.Now()

	j.RecordAttempt(ctx, requestID, req, swap.Attempt{Number: 1, State: swap.StateQuoting, Outcome: swap.OutcomePending, StartedAt: start})
	j.RecordAttempt(ctx, requestID, req, swap.Attempt{Number: 1, State: swap.StateFailed, Outcome: swap.OutcomeFailed, Reason: "no suitable quote", StartedAt: start, FinishedAt: time.Now()})
	j.RecordAttempt(ctx, requestID, req, swap.Attempt{Number: 2, State: swap.StateSucceeded, Outcome: swap.OutcomeSucceeded, TxID: "sig", OutAmount: 7, StartedAt: start, FinishedAt: time.Now()})

	require.NoError(t, j.Sync(ctx))
	attempts, err := j.Attempts(ctx, requestID)
	require.NoError(t, err)
	require.Len(t, attempts, 2, "transitions of one attempt share a row")

	assert.Equal(t, swap.StateFailed, attempts[0].State)
	assert.Equal(t, "no suitable quote", attempts[0].Reason)
	assert.Equal(t, swap.OutcomeSucceeded, attempts[1].Outcome)
	assert.Equal(t, "sig", attempts[1].TxID)
	assert.Equal(t, uint64(7), attempts[1].OutAmount)
}
