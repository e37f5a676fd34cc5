package solana

import (
	"context"
	"net"

	"tradeagent/internal/redact"
	"tradeagent/internal/swap"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/pkg/errors"
)

// Broadcaster submits signed transactions through a Solana RPC node
type Broadcaster struct {
	rpc *rpc.Client
}

func NewBroadcaster(client *rpc.Client) *Broadcaster {
	return &Broadcaster{rpc: client}
}

// Submit sends the transaction with preflight simulation enabled.
// Errors that prove the node did not accept the payload (JSON-RPC errors,
// HTTP status errors, failed dials) are plain and retryable. Anything after
// the request may have reached the node wraps swap.ErrUnconfirmed.
func (b *Broadcaster) Submit(ctx context.Context, signed []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(err, "send transaction")
	}

	sig, err := b.rpc.SendRawTransactionWithOpts(ctx, signed, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return "", classifySendError(err)
	}
	return sig.String(), nil
}

func classifySendError(err error) error {
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return errors.Errorf("rpc error %d: %s", rpcErr.Code, redact.String(rpcErr.Message))
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		return errors.Errorf("rpc node returned status %d", httpErr.Code)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return errors.Wrap(redact.Error(opErr), "rpc node unreachable")
	}

	return errors.Wrapf(swap.ErrUnconfirmed, "send transaction: %v", redact.Error(err))
}
