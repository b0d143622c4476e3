package model

import (
	consensusmodel "github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
)

// Mempool maintains a set of known transactions that
// are intended to be mined into new blocks
type Mempool interface {
	Admit(transaction *externalapi.DomainTransaction, utxoSet consensusmodel.ReadOnlyUTXOSet) error
	DrainConfirmed(block *externalapi.DomainBlock) int
	Revalidate(newUTXOSet consensusmodel.ReadOnlyUTXOSet) []*externalapi.DomainTransaction
	Transactions() []*externalapi.DomainTransaction
	Transaction(id *externalapi.DomainTransactionID) (*externalapi.DomainTransaction, bool)
	Has(id *externalapi.DomainTransactionID) bool
	IsSpentByPool(outpoint *externalapi.DomainOutpoint) bool
	Count() int
}
