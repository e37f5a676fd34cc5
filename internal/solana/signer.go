// Package solana adapts solana-go to the swap collaborators: a local
// keypair signer, an RPC broadcaster and a wallet balance reader.
package solana

import (
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// ErrMissingKey is returned when no private key is configured
var ErrMissingKey = errors.New("wallet private key not configured")

// Signer signs serialized transactions with a single base58 keypair
type Signer struct {
	key solana.PrivateKey
	pub solana.PublicKey
}

// NewSigner parses a base58 encoded secret key
func NewSigner(base58Key string) (*Signer, error) {
	base58Key = strings.TrimSpace(base58Key)
	if base58Key == "" {
		return nil, ErrMissingKey
	}
	key, err := solana.PrivateKeyFromBase58(base58Key)
	if err != nil {
		return nil, errors.Wrap(err, "parse wallet private key")
	}
	return NewSignerFromKey(key), nil
}

func NewSignerFromKey(key solana.PrivateKey) *Signer {
	return &Signer{key: key, pub: key.PublicKey()}
}

// PublicKey returns the wallet address
func (s *Signer) PublicKey() string {
	return s.pub.String()
}

// Sign decodes an unsigned transaction, signs it for the wallet and
// returns the serialized result. The wallet's signature is the tx id.
func (s *Signer) Sign(payload []byte) ([]byte, string, error) {
	dec := bin.NewBinDecoder(payload)
	tx, err := solana.TransactionFromDecoder(dec)
	if err != nil {
		return nil, "", errors.Wrap(err, "decode transaction")
	}
	if dec.HasRemaining() {
		return nil, "", errors.Errorf("decode transaction: %d trailing bytes", dec.Remaining())
	}

	// The aggregator returns transactions with zeroed signature slots.
	// Clearing them lets the slice be rebuilt for the message signers.
	for _, sig := range tx.Signatures {
		if !sig.IsZero() {
			return nil, "", errors.New("transaction is already signed")
		}
	}
	tx.Signatures = nil

	sigs, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.pub) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "sign transaction")
	}
	if len(sigs) == 0 {
		return nil, "", errors.New("transaction has no signers")
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, "", errors.Wrap(err, "encode signed transaction")
	}
	return signed, sigs[0].String(), nil
}
