package mining

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/pow"
	"go.uber.org/atomic"
)

// CancellationCheckInterval is the number of nonces tried between two polls
// of the cancellation signals.
const CancellationCheckInterval = 1 << 12

// ErrAborted is returned by SolveBlock when its abort channel was closed
// before a solution was found.
var ErrAborted = errors.New("block solving aborted")

// ErrNonceSpaceExhausted is returned by SolveBlock when no nonce from
// startNonce up satisfies the target.
var ErrNonceSpaceExhausted = errors.New("went over all the nonce space and couldn't find a single one that gives a valid block")

// SolveBlock searches nonces from startNonce upwards until the hash of
// block's header is at or below the header's target, leaving the solution in
// block.Header.Nonce. It stops early with ErrAborted if abort is closed, or
// with the context's error if ctx is done. Both are only polled every
// CancellationCheckInterval nonces. hashesTried, if not nil, is incremented
// as nonces are tried.
func SolveBlock(ctx context.Context, hasher model.CryptoProvider, block *externalapi.DomainBlock,
	startNonce uint64, abort <-chan struct{}, hashesTried *atomic.Uint64) error {

	target := pow.CompactToBig(block.Header.Bits)
	if !pow.IsValidTarget(block.Header.Bits) {
		return errors.Errorf("bits %08x do not encode a reachable target", block.Header.Bits)
	}

	var tried, counted uint64
	for nonce := startNonce; ; nonce++ {
		if tried%CancellationCheckInterval == 0 && tried > 0 {
			if hashesTried != nil {
				hashesTried.Add(tried - counted)
				counted = tried
			}
			select {
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			case <-abort:
				return errors.WithStack(ErrAborted)
			default:
			}
		}

		block.Header.Nonce = nonce
		hash := consensushashing.HeaderHash(hasher, block.Header)
		tried++
		if pow.HashToBig(hash).Cmp(target) <= 0 {
			if hashesTried != nil {
				hashesTried.Add(tried - counted)
			}
			return nil
		}

		if nonce == math.MaxUint64 {
			return errors.WithStack(ErrNonceSpaceExhausted)
		}
	}
}
