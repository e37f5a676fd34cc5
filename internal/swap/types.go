package swap

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// State is a step of one swap attempt
type State string

const (
	StateQuoting      State = "quoting"
	StateBuilding     State = "building"
	StateSigning      State = "signing"
	StateBroadcasting State = "broadcasting"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
)

// AttemptOutcome is the resolution of one attempt
type AttemptOutcome string

const (
	OutcomePending   AttemptOutcome = "pending"
	OutcomeSucceeded AttemptOutcome = "succeeded"
	OutcomeFailed    AttemptOutcome = "failed"
)

// Status is the final result of a whole request
type Status string

const (
	StatusSucceeded     Status = "succeeded"
	StatusExhausted     Status = "exhausted"
	StatusSigningFailed Status = "signing_failed"
	StatusUnconfirmed   Status = "unconfirmed"
	StatusInvalid       Status = "invalid"
	StatusCanceled      Status = "canceled"
)

var (
	// ErrNoSuitableQuote fails an attempt whose quote is missing or worthless
	ErrNoSuitableQuote = errors.New("no suitable quote")
	// ErrUnconfirmed is wrapped by broadcasters when a payload may have been
	// submitted but the result was lost (timeouts, dropped connections)
	ErrUnconfirmed = errors.New("broadcast not confirmed")
)

// Request is one swap as asked for by the model
type Request struct {
	FromMint    string
	ToMint      string
	Amount      uint64 // smallest unit of FromMint
	SlippageBps int
}

// Quote is the external price estimate for a request
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	SlippageBps    int
	PriceImpactPct string
	// Raw is the collaborator's own quote document, handed back to the builder
	Raw json.RawMessage
}

// Quoter prices a prospective swap
type Quoter interface {
	Quote(ctx context.Context, req Request) (*Quote, error)
}

// Builder returns an unsigned transaction payload for a quoted swap
type Builder interface {
	BuildSwap(ctx context.Context, req Request, quote *Quote) ([]byte, error)
}

// Signer signs payloads locally. It returns the signed payload and the
// transaction id that the signature determines.
type Signer interface {
	PublicKey() string
	Sign(payload []byte) (signed []byte, txID string, err error)
}

// Broadcaster submits a signed payload and returns the transaction id
type Broadcaster interface {
	Submit(ctx context.Context, signed []byte) (string, error)
}

// Attempt is one try of quote, build, sign and broadcast
type Attempt struct {
	Number     int
	State      State
	Outcome    AttemptOutcome
	Reason     string
	TxID       string
	OutAmount  uint64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder observes attempt transitions, e.g. to journal them
type Recorder interface {
	RecordAttempt(ctx context.Context, requestID string, req Request, attempt Attempt)
}

// RecorderFunc adapts a function to Recorder
type RecorderFunc func(ctx context.Context, requestID string, req Request, attempt Attempt)

func (f RecorderFunc) RecordAttempt(ctx context.Context, requestID string, req Request, attempt Attempt) {
	f(ctx, requestID, req, attempt)
}
