package blocktemplatebuilder

import (
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/blockbuilder"
	"github.com/tinycrypto/ledgerd/domain/miningmanager/model"
)

// blockTemplateBuilder creates block templates for a miner to consume
type blockTemplateBuilder struct {
	blockBuilder *blockbuilder.BlockBuilder
	mempool      model.Mempool
}

// New creates a new blockTemplateBuilder
func New(blockBuilder *blockbuilder.BlockBuilder, mempool model.Mempool) model.BlockTemplateBuilder {
	return &blockTemplateBuilder{
		blockBuilder: blockBuilder,
		mempool:      mempool,
	}
}

// GetBlockTemplate creates an unsolved block on top of parentHash that
// includes the pooled transactions in admission order. Since the pool is
// valid against the UTXO set at parentHash in that order, so is the template.
func (btb *blockTemplateBuilder) GetBlockTemplate(parentHash *externalapi.DomainHash, height uint64,
	owner externalapi.PublicKeyHash) *externalapi.DomainBlock {

	candidates := btb.mempool.Transactions()
	log.Debugf("Building a block template at height %d with %d candidate transactions", height, len(candidates))
	return btb.blockBuilder.BuildBlock(parentHash, height, owner, candidates)
}
