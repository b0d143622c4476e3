package blockvalidator

import (
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/coinbasemanager"
	"github.com/tinycrypto/ledgerd/domain/consensus/utxo"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
)

// BlockValidator exposes a set of validation classes, after which
// it's possible to determine whether a block is valid
type BlockValidator struct {
	params          *ledgerconfig.Params
	provider        model.CryptoProvider
	coinbaseManager *coinbasemanager.CoinbaseManager
}

// New instantiates a new BlockValidator
func New(params *ledgerconfig.Params, provider model.CryptoProvider,
	coinbaseManager *coinbasemanager.CoinbaseManager) *BlockValidator {

	return &BlockValidator{
		params:          params,
		provider:        provider,
		coinbaseManager: coinbaseManager,
	}
}

// ValidateBlock runs every check on block as a child of parent, with
// utxoSnapshot being the UTXO set at parent. parent is nil for the genesis
// block. On success it returns the view holding the block's effect on
// utxoSnapshot, which is itself never modified.
func (v *BlockValidator) ValidateBlock(block *externalapi.DomainBlock, parent *model.BlockNode,
	utxoSnapshot model.ReadOnlyUTXOSet) (*utxo.DiffView, error) {

	onEnd := logger.LogAndMeasureExecutionTime(log, "ValidateBlock")
	defer onEnd()

	err := v.ValidateBlockInIsolation(block)
	if err != nil {
		return nil, err
	}
	return v.ValidateBlockInContext(block, parent, utxoSnapshot)
}
