package miningmanager

import (
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/blockbuilder"
	"github.com/tinycrypto/ledgerd/domain/miningmanager/blocktemplatebuilder"
	"github.com/tinycrypto/ledgerd/domain/miningmanager/mempool"
)

// Factory instantiates new mining managers
type Factory interface {
	NewMiningManager(provider model.CryptoProvider, blockBuilder *blockbuilder.BlockBuilder,
		mempoolConfig *mempool.Config) MiningManager
}

type factory struct{}

// NewMiningManager instantiates a new mining manager
func (f *factory) NewMiningManager(provider model.CryptoProvider, blockBuilder *blockbuilder.BlockBuilder,
	mempoolConfig *mempool.Config) MiningManager {

	mempool := mempool.New(provider, mempoolConfig)
	blockTemplateBuilder := blocktemplatebuilder.New(blockBuilder, mempool)

	return &miningManager{
		mempool:              mempool,
		blockTemplateBuilder: blockTemplateBuilder,
	}
}

// NewFactory creates a new mining manager factory
func NewFactory() Factory {
	return &factory{}
}
