package swap

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	wsol = "So11111111111111111111111111111111111111112"
	usdc = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type stubQuoter struct {
	calls int
	quote func(n int) (*Quote, error)
}

func (s *stubQuoter) Quote(ctx context.Context, req Request) (*Quote, error) {
	s.calls++
	return s.quote(s.calls)
}

type stubBuilder struct {
	calls int
	fail  func(n int) error
}

func (s *stubBuilder) BuildSwap(ctx context.Context, req Request, q *Quote) ([]byte, error) {
	s.calls++
	if s.fail != nil {
		if err := s.fail(s.calls); err != nil {
			return nil, err
		}
	}
	return []byte("unsigned"), nil
}

type stubSigner struct {
	calls int
	err   error
}

func (s *stubSigner) PublicKey() string { return "wallet" }

func (s *stubSigner) Sign(payload []byte) ([]byte, string, error) {
	s.calls++
	if s.err != nil {
		return nil, "", s.err
	}
	return append([]byte("signed:"), payload...), "sig123", nil
}

type stubBroadcaster struct {
	calls int
	err   error
}

func (s *stubBroadcaster) Submit(ctx context.Context, signed []byte) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "tx-abc", nil
}

func goodQuote(int) (*Quote, error) {
	return &Quote{OutAmount: 42}, nil
}

type sleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func request() Request {
	return Request{FromMint: wsol, ToMint: usdc, Amount: 5_000}
}

func TestExecutor_ZeroQuoteExhaustsRetries(t *testing.T) {
	q := &stubQuoter{quote: func(int) (*Quote, error) { return &Quote{OutAmount: 0}, nil }}
	b := &stubBuilder{}
	s := &stubSigner{}
	bc := &stubBroadcaster{}
	sl := &sleeps{}

	e := NewExecutor(q, b, s, bc, Config{}, WithSleep(sl.sleep))
	res := e.Execute(context.Background(), request())

	assert.Equal(t, "All retries exhausted. Transaction failed.", res.String())
	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, DefaultMaxRetries, q.calls)
	assert.Len(t, res.Attempts, DefaultMaxRetries)
	assert.Equal(t, 0, b.calls)
	assert.Equal(t, 0, bc.calls)
	assert.Equal(t, ErrNoSuitableQuote.Error(), res.Reason)

	// fixed delay between attempts, none after the last
	assert.Equal(t, []time.Duration{DefaultRetryDelay, DefaultRetryDelay}, sl.delays)
}

func TestExecutor_NilQuoteIsNoSuitableQuote(t *testing.T) {
	q := &stubQuoter{quote: func(int) (*Quote, error) { return nil, nil }}
	bc := &stubBroadcaster{}

	e := NewExecutor(q, &stubBuilder{}, &stubSigner{}, bc, Config{MaxRetries: 2}, WithSleep((&sleeps{}).sleep))
	res := e.Execute(context.Background(), request())

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 2, q.calls)
	assert.Equal(t, 0, bc.calls)
}

func TestExecutor_SucceedsOnSecondAttempt(t *testing.T) {
	q := &stubQuoter{quote: goodQuote}
	b := &stubBuilder{fail: func(n int) error {
		if n == 1 {
			return errors.New("swap api 503")
		}
		return nil
	}}
	s := &stubSigner{}
	bc := &stubBroadcaster{}

	e := NewExecutor(q, b, s, bc, Config{}, WithSleep((&sleeps{}).sleep))
	res := e.Execute(context.Background(), request())

	require.True(t, res.Succeeded())
	assert.Contains(t, res.String(), "tx-abc")
	assert.Equal(t,
		"Transaction between "+wsol+" and "+usdc+" executed successfully. Sent 5000 "+wsol+" with id https://explorer.solana.com/tx/tx-abc",
		res.String())
	assert.Equal(t, 2, q.calls)
	assert.Equal(t, 2, b.calls)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, 1, bc.calls)

	require.Len(t, res.Attempts, 2)
	assert.Equal(t, 1, res.Attempts[0].Number)
	assert.Equal(t, OutcomeFailed, res.Attempts[0].Outcome)
	assert.Equal(t, StateBuilding, res.Attempts[0].State)
	assert.Equal(t, 2, res.Attempts[1].Number)
	assert.Equal(t, OutcomeSucceeded, res.Attempts[1].Outcome)
}

func TestExecutor_SigningFailureIsFatal(t *testing.T) {
	q := &stubQuoter{quote: goodQuote}
	b := &stubBuilder{}
	s := &stubSigner{err: errors.New("corrupt payload")}
	bc := &stubBroadcaster{}

	e := NewExecutor(q, b, s, bc, Config{}, WithSleep((&sleeps{}).sleep))
	res := e.Execute(context.Background(), request())

	assert.Equal(t, StatusSigningFailed, res.Status)
	assert.Equal(t, "Transaction signing failed: corrupt payload", res.String())
	assert.Equal(t, 1, q.calls)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, 0, bc.calls)
}

func TestExecutor_BroadcastErrorsAreRetried(t *testing.T) {
	q := &stubQuoter{quote: goodQuote}
	bc := &stubBroadcaster{err: errors.New("blockhash not found")}

	e := NewExecutor(q, &stubBuilder{}, &stubSigner{}, bc, Config{MaxRetries: 4}, WithSleep((&sleeps{}).sleep))
	res := e.Execute(context.Background(), request())

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, 4, q.calls)
	assert.Equal(t, 4, bc.calls)
	for i, a := range res.Attempts {
		assert.Equal(t, i+1, a.Number)
	}
}

func TestExecutor_UnconfirmedBroadcastStops(t *testing.T) {
	q := &stubQuoter{quote: goodQuote}
	bc := &stubBroadcaster{err: errors.Wrap(ErrUnconfirmed, "read timeout")}

	e := NewExecutor(q, &stubBuilder{}, &stubSigner{}, bc, Config{}, WithSleep((&sleeps{}).sleep))
	res := e.Execute(context.Background(), request())

	assert.Equal(t, StatusUnconfirmed, res.Status)
	assert.Equal(t, 1, bc.calls)
	assert.Equal(t, "sig123", res.TxID)
	assert.Contains(t, res.String(), "sig123")
}

func TestExecutor_RetryUnconfirmedWhenConfigured(t *testing.T) {
	q := &stubQuoter{quote: goodQuote}
	bc := &stubBroadcaster{err: errors.Wrap(ErrUnconfirmed, "read timeout")}

	e := NewExecutor(q, &stubBuilder{}, &stubSigner{}, bc, Config{RetryUnconfirmed: true}, WithSleep((&sleeps{}).sleep))
	res := e.Execute(context.Background(), request())

	assert.Equal(t, StatusExhausted, res.Status)
	assert.Equal(t, DefaultMaxRetries, bc.calls)
}

func TestExecutor_InvalidRequest(t *testing.T) {
	q := &stubQuoter{quote: goodQuote}
	e := NewExecutor(q, &stubBuilder{}, &stubSigner{}, &stubBroadcaster{}, Config{})

	for _, req := range []Request{
		{FromMint: wsol, ToMint: usdc, Amount: 0},
		{FromMint: wsol, ToMint: wsol, Amount: 1},
		{FromMint: "", ToMint: usdc, Amount: 1},
	} {
		res := e.Execute(context.Background(), req)
		assert.Equal(t, StatusInvalid, res.Status)
		assert.Contains(t, res.String(), "Invalid swap request")
	}
	assert.Equal(t, 0, q.calls)
}

func TestExecutor_CancelDuringRetryWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &stubQuoter{quote: func(int) (*Quote, error) {
		cancel()
		return nil, errors.New("quote api down")
	}}

	e := NewExecutor(q, &stubBuilder{}, &stubSigner{}, &stubBroadcaster{}, Config{RetryDelay: time.Hour})
	res := e.Execute(ctx, request())

	assert.Equal(t, StatusCanceled, res.Status)
	assert.Equal(t, 1, q.calls)
}

func TestExecutor_DefaultSlippage(t *testing.T) {
	var seen int
	q := quoterFunc(func(ctx context.Context, req Request) (*Quote, error) {
		seen = req.SlippageBps
		return &Quote{OutAmount: 1}, nil
	})

	e := NewExecutor(q, &stubBuilder{}, &stubSigner{}, &stubBroadcaster{}, Config{})
	res := e.Execute(context.Background(), request())

	require.True(t, res.Succeeded())
	assert.Equal(t, DefaultSlippageBps, seen)
}

func TestExecutor_RecorderSeesTransitions(t *testing.T) {
	var states []State
	rec := RecorderFunc(func(ctx context.Context, id string, req Request, a Attempt) {
		states = append(states, a.State)
	})

	e := NewExecutor(&stubQuoter{quote: goodQuote}, &stubBuilder{}, &stubSigner{}, &stubBroadcaster{}, Config{}, WithRecorder(rec))
	res := e.Execute(context.Background(), request())

	require.True(t, res.Succeeded())
	assert.Equal(t, []State{StateQuoting, StateBuilding, StateSigning, StateBroadcasting, StateSucceeded}, states)
}

type quoterFunc func(ctx context.Context, req Request) (*Quote, error)

func (f quoterFunc) Quote(ctx context.Context, req Request) (*Quote, error) { return f(ctx, req) }

type slowBroadcaster struct {
	active, peak int32
}

func (s *slowBroadcaster) Submit(ctx context.Context, signed []byte) (string, error) {
	n := atomic.AddInt32(&s.active, 1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	atomic.AddInt32(&s.active, -1)
	return "tx", nil
}

func TestExecutor_LockAccountsSerializes(t *testing.T) {
	bc := &slowBroadcaster{}
	q := quoterFunc(func(ctx context.Context, req Request) (*Quote, error) { return &Quote{OutAmount: 1}, nil })
	signer := &lockedSigner{}
	e := NewExecutor(q, builderFunc(func() []byte { return []byte("x") }), signer, bc, Config{LockAccounts: true})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Execute(context.Background(), request())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&bc.peak))
}

type builderFunc func() []byte

func (f builderFunc) BuildSwap(ctx context.Context, req Request, q *Quote) ([]byte, error) {
	return f(), nil
}

type lockedSigner struct{}

func (lockedSigner) PublicKey() string { return "wallet" }
func (lockedSigner) Sign(p []byte) ([]byte, string, error) {
	return p, "sig", nil
}
