package mempool

import (
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
)

// projectedView is the UTXO set as it would be once every pooled
// transaction is confirmed.
type projectedView struct {
	mempool *Mempool
	utxoSet model.ReadOnlyUTXOSet
}

func (mp *Mempool) projectedView(utxoSet model.ReadOnlyUTXOSet) model.ReadOnlyUTXOSet {
	return &projectedView{mempool: mp, utxoSet: utxoSet}
}

func (pv *projectedView) Get(outpoint *externalapi.DomainOutpoint) (*externalapi.DomainTransactionOutput, bool) {
	if _, spent := pv.mempool.spentOutpoints[*outpoint]; spent {
		return nil, false
	}
	if parent, ok := pv.mempool.pool[outpoint.TransactionID]; ok {
		if outpoint.Index >= uint32(len(parent.transaction.Outputs)) {
			return nil, false
		}
		return parent.transaction.Outputs[outpoint.Index], true
	}
	return pv.utxoSet.Get(outpoint)
}
