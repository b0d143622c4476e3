package blockvalidator

import (
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utxo"
)

// ValidateBlockInContext validates block as a child of parent against the
// UTXO set at parent: the coinbase must belong to the block's height and pay
// its subsidy, and every spend must validate against the UTXO set as updated
// by the transactions before it in the block. It assumes the block already
// passed ValidateBlockInIsolation.
func (v *BlockValidator) ValidateBlockInContext(block *externalapi.DomainBlock, parent *model.BlockNode,
	utxoSnapshot model.ReadOnlyUTXOSet) (*utxo.DiffView, error) {

	height := uint64(0)
	if parent != nil {
		if !block.Header.PreviousBlockHash.Equal(&parent.Hash) {
			return nil, errors.Errorf("block's previous hash %s is not the given parent %s",
				block.Header.PreviousBlockHash, parent.Hash)
		}
		height = parent.Height + 1
	} else if !block.Header.PreviousBlockHash.IsZero() {
		return nil, errors.Errorf("block with previous hash %s was validated as genesis",
			block.Header.PreviousBlockHash)
	}

	err := v.coinbaseManager.ValidateCoinbaseTransaction(block.Transactions[0], height)
	if err != nil {
		return nil, err
	}

	view := utxo.NewDiffView(utxoSnapshot)
	err = view.AddTransaction(v.provider, block.Transactions[0])
	if err != nil {
		return nil, err
	}
	for i, tx := range block.Transactions[1:] {
		_, err := utxo.ValidateTransaction(v.provider, tx, view)
		if err != nil {
			return nil, errors.Wrapf(err, "transaction %d (%s)", i+1, consensushashing.TransactionID(v.provider, tx))
		}
		err = view.AddTransaction(v.provider, tx)
		if err != nil {
			return nil, err
		}
	}
	return view, nil
}
