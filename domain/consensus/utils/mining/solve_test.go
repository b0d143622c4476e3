package mining

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/cryptoprovider"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/pow"
	"go.uber.org/atomic"
)

func blockWithBits(bits uint32) *externalapi.DomainBlock {
	return &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:            1,
			TimeInMilliseconds: 1700000000000,
			Bits:               bits,
		},
	}
}

func TestSolveBlock(t *testing.T) {
	provider := cryptoprovider.New()
	block := blockWithBits(0x207fffff)
	hashesTried := atomic.NewUint64(0)

	err := SolveBlock(context.Background(), provider, block, 0, nil, hashesTried)
	if err != nil {
		t.Fatalf("TestSolveBlock: SolveBlock: %+v", err)
	}
	hash := consensushashing.HeaderHash(provider, block.Header)
	if !pow.CheckProofOfWork(hash, block.Header.Bits) {
		t.Fatalf("TestSolveBlock: nonce %d does not satisfy the target", block.Header.Nonce)
	}
	if hashesTried.Load() != block.Header.Nonce+1 {
		t.Fatalf("TestSolveBlock: expected %d hashes to be counted, got %d",
			block.Header.Nonce+1, hashesTried.Load())
	}
}

func TestSolveBlockAbort(t *testing.T) {
	provider := cryptoprovider.New()
	// A target of 1 is never met in practice.
	block := blockWithBits(0x01010000)

	abort := make(chan struct{})
	close(abort)
	err := SolveBlock(context.Background(), provider, block, 0, abort, nil)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("TestSolveBlockAbort: expected ErrAborted, got %+v", err)
	}
	if block.Header.Nonce != CancellationCheckInterval-1 {
		t.Fatalf("TestSolveBlockAbort: expected the search to stop at the first poll, stopped at nonce %d",
			block.Header.Nonce)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = SolveBlock(ctx, provider, block, 0, nil, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("TestSolveBlockAbort: expected context.Canceled, got %+v", err)
	}
}

func TestSolveBlockInvalidTarget(t *testing.T) {
	err := SolveBlock(context.Background(), cryptoprovider.New(), blockWithBits(0), 0, nil, nil)
	if err == nil {
		t.Fatalf("TestSolveBlockInvalidTarget: expected a zero target to be rejected")
	}
}
