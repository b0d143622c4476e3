package blockbuilder

import (
	"context"
	"time"

	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/coinbasemanager"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/mining"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
)

// BlockBuilder assembles block templates and solves them.
type BlockBuilder struct {
	params          *ledgerconfig.Params
	provider        model.CryptoProvider
	coinbaseManager *coinbasemanager.CoinbaseManager
}

// New instantiates a new BlockBuilder
func New(params *ledgerconfig.Params, provider model.CryptoProvider,
	coinbaseManager *coinbasemanager.CoinbaseManager) *BlockBuilder {

	return &BlockBuilder{
		params:          params,
		provider:        provider,
		coinbaseManager: coinbaseManager,
	}
}

// BuildBlock builds an unsolved block at height on top of parentHash. Its
// coinbase pays the height's subsidy to owner, followed by as many of
// candidates, in order, as the block size limit leaves room for. The
// candidates are expected to be valid, in order, against the UTXO set at
// parentHash.
func (bb *BlockBuilder) BuildBlock(parentHash *externalapi.DomainHash, height uint64,
	owner externalapi.PublicKeyHash, candidates []*externalapi.DomainTransaction) *externalapi.DomainBlock {

	onEnd := logger.LogAndMeasureExecutionTime(log, "BuildBlock")
	defer onEnd()

	maxCandidates := bb.params.BlockSizeLimit - 1
	if len(candidates) > maxCandidates {
		log.Debugf("Only %d of %d candidate transactions fit in the block", maxCandidates, len(candidates))
		candidates = candidates[:maxCandidates]
	}

	coinbase := bb.coinbaseManager.ExpectedCoinbaseTransaction(height, owner)
	transactions := make([]*externalapi.DomainTransaction, 0, len(candidates)+1)
	transactions = append(transactions, coinbase)
	transactions = append(transactions, candidates...)

	header := &externalapi.DomainBlockHeader{
		Version:            bb.params.BlockVersion,
		PreviousBlockHash:  *parentHash,
		MerkleRoot:         *consensushashing.MerkleRoot(bb.provider, transactions),
		TimeInMilliseconds: time.Now().UnixMilli(),
		Bits:               bb.params.PowBits,
	}
	return &externalapi.DomainBlock{
		Header:       header,
		Transactions: transactions,
	}
}

// Solve searches for block's nonce, starting from zero, until it is found,
// ctx is done or abort is closed. A nil abort never closes.
func (bb *BlockBuilder) Solve(ctx context.Context, block *externalapi.DomainBlock, abort <-chan struct{}) error {
	err := mining.SolveBlock(ctx, bb.provider, block, 0, abort, nil)
	if err != nil {
		return err
	}
	log.Debugf("Mined block %s with %d transactions",
		consensushashing.BlockHash(bb.provider, block), len(block.Transactions))
	return nil
}
