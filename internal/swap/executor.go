package swap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradeagent/internal/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 5 * time.Second
	DefaultSlippageBps = 1
	DefaultExplorerURL = "https://explorer.solana.com/tx/"

	exhaustedMessage = "All retries exhausted. Transaction failed."
)

// Config tunes the retry policy
type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	SlippageBps int
	ExplorerURL string
	// LockAccounts serializes swaps funded by the same signing account
	LockAccounts bool
	// RetryUnconfirmed retries after ErrUnconfirmed instead of stopping
	RetryUnconfirmed bool
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	} else if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.SlippageBps <= 0 {
		c.SlippageBps = DefaultSlippageBps
	}
	if c.ExplorerURL == "" {
		c.ExplorerURL = DefaultExplorerURL
	}
	return c
}

// Executor runs swaps through a bounded retry state machine.
// Collaborators are shared; each Execute call owns its attempts.
type Executor struct {
	quoter      Quoter
	builder     Builder
	signer      Signer
	broadcaster Broadcaster
	cfg         Config

	recorder Recorder
	log      *logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	newID    func() string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option customizes an Executor
type Option func(*Executor)

// WithRecorder attaches an attempt observer
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithSleep replaces the wait between attempts
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

func NewExecutor(q Quoter, b Builder, s Signer, bc Broadcaster, cfg Config, opts ...Option) *Executor {
	e := &Executor{
		quoter:      q,
		builder:     b,
		signer:      s,
		broadcaster: bc,
		cfg:         cfg.withDefaults(),
		log:         logger.Nop(),
		sleep:       sleepCtx,
		newID:       uuid.NewString,
		locks:       make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration
func (e *Executor) Config() Config {
	return e.cfg
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Result describes how a request ended
type Result struct {
	RequestID string
	Request   Request
	Status    Status
	TxID      string
	Reason    string
	Attempts  []Attempt

	explorerURL string
}

// String is the observation handed back to the model
func (r *Result) String() string {
	switch r.Status {
	case StatusSucceeded:
		return fmt.Sprintf("Transaction between %s and %s executed successfully. Sent %d %s with id %s%s",
			r.Request.FromMint, r.Request.ToMint, r.Request.Amount, r.Request.FromMint, r.explorerURL, r.TxID)
	case StatusSigningFailed:
		return "Transaction signing failed: " + r.Reason
	case StatusUnconfirmed:
		return fmt.Sprintf("Transaction %s%s was submitted but not confirmed (%s). Not retried; check the explorer before swapping again.",
			r.explorerURL, r.TxID, r.Reason)
	case StatusInvalid:
		return "Invalid swap request: " + r.Reason
	case StatusCanceled:
		return "Swap cancelled: " + r.Reason
	default:
		return exhaustedMessage
	}
}

// Succeeded reports whether the swap went through
func (r *Result) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Execute runs up to MaxRetries attempts. It never returns an error:
// every ending, including exhaustion, is described by the Result.
func (e *Executor) Execute(ctx context.Context, req Request) *Result {
	if req.SlippageBps <= 0 {
		req.SlippageBps = e.cfg.SlippageBps
	}

	res := &Result{
		RequestID:   e.newID(),
		Request:     req,
		explorerURL: e.cfg.ExplorerURL,
	}

	if reason := validate(req); reason != "" {
		res.Status = StatusInvalid
		res.Reason = reason
		return res
	}

	if e.cfg.LockAccounts {
		unlock := e.lockAccount(e.signer.PublicKey())
		defer unlock()
	}

	for n := 1; n <= e.cfg.MaxRetries; n++ {
		attempt, err := e.attempt(ctx, res.RequestID, req, n)
		res.Attempts = append(res.Attempts, attempt)

		if err == nil {
			res.Status = StatusSucceeded
			res.TxID = attempt.TxID
			e.log.Info("swap %s succeeded on attempt %d: %s", res.RequestID, n, attempt.TxID)
			return res
		}

		e.log.Warn("swap %s attempt %d failed in %s: %v", res.RequestID, n, attempt.State, err)

		var fatal *fatalError
		if errors.As(err, &fatal) {
			res.Status = fatal.status
			res.Reason = fatal.Error()
			res.TxID = attempt.TxID
			return res
		}

		res.Reason = err.Error()
		if n < e.cfg.MaxRetries {
			e.log.Debug("retrying swap %s in %s", res.RequestID, e.cfg.RetryDelay)
			if err := e.sleep(ctx, e.cfg.RetryDelay); err != nil {
				res.Status = StatusCanceled
				res.Reason = err.Error()
				return res
			}
		}
	}

	res.Status = StatusExhausted
	return res
}

func validate(req Request) string {
	switch {
	case strings.TrimSpace(req.FromMint) == "" || strings.TrimSpace(req.ToMint) == "":
		return "both token mints are required"
	case req.FromMint == req.ToMint:
		return "input and output mints must differ"
	case req.Amount == 0:
		return "amount must be greater than zero"
	}
	return ""
}

// fatalError ends the request without further attempts
type fatalError struct {
	status Status
	err    error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// attempt walks Quoting → Building → Signing → Broadcasting once
func (e *Executor) attempt(ctx context.Context, requestID string, req Request, n int) (Attempt, error) {
	a := Attempt{Number: n, Outcome: OutcomePending, StartedAt: time.Now()}

	fail := func(err error) (Attempt, error) {
		a.Outcome = OutcomeFailed
		a.Reason = err.Error()
		a.FinishedAt = time.Now()
		e.record(ctx, requestID, req, a)
		return a, err
	}
	enter := func(s State) {
		a.State = s
		e.record(ctx, requestID, req, a)
	}

	enter(StateQuoting)
	quote, err := e.quoter.Quote(ctx, req)
	if err != nil {
		return fail(errors.Wrap(err, "quote"))
	}
	if quote == nil || quote.OutAmount == 0 {
		return fail(ErrNoSuitableQuote)
	}
	a.OutAmount = quote.OutAmount

	enter(StateBuilding)
	payload, err := e.builder.BuildSwap(ctx, req, quote)
	if err != nil {
		return fail(errors.Wrap(err, "build"))
	}

	enter(StateSigning)
	signed, txID, err := e.signer.Sign(payload)
	if err != nil {
		return fail(&fatalError{status: StatusSigningFailed, err: err})
	}
	a.TxID = txID

	enter(StateBroadcasting)
	submitted, err := e.broadcaster.Submit(ctx, signed)
	if err != nil {
		if errors.Is(err, ErrUnconfirmed) && !e.cfg.RetryUnconfirmed {
			return fail(&fatalError{status: StatusUnconfirmed, err: err})
		}
		return fail(errors.Wrap(err, "broadcast"))
	}
	if submitted != "" {
		a.TxID = submitted
	}

	a.State = StateSucceeded
	a.Outcome = OutcomeSucceeded
	a.FinishedAt = time.Now()
	e.record(ctx, requestID, req, a)
	return a, nil
}

func (e *Executor) record(ctx context.Context, requestID string, req Request, a Attempt) {
	if e.recorder != nil {
		e.recorder.RecordAttempt(ctx, requestID, req, a)
	}
}

func (e *Executor) lockAccount(account string) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[account]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[account] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
