package miningmanager

import (
	consensusmodel "github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	miningmanagermodel "github.com/tinycrypto/ledgerd/domain/miningmanager/model"
)

// MiningManager creates block templates for mining as well as maintaining
// known transactions that have no yet been added to any block
type MiningManager interface {
	GetBlockTemplate(parentHash *externalapi.DomainHash, height uint64,
		owner externalapi.PublicKeyHash) *externalapi.DomainBlock
	HandleChainChange(addedBlocks []*externalapi.DomainBlock,
		utxoSet consensusmodel.ReadOnlyUTXOSet) []*externalapi.DomainTransaction
	ValidateAndInsertTransaction(transaction *externalapi.DomainTransaction,
		utxoSet consensusmodel.ReadOnlyUTXOSet) error
	AllTransactions() []*externalapi.DomainTransaction
	GetTransaction(id *externalapi.DomainTransactionID) (*externalapi.DomainTransaction, bool)
	IsSpentByPool(outpoint *externalapi.DomainOutpoint) bool
	TransactionCount() int
}

type miningManager struct {
	mempool              miningmanagermodel.Mempool
	blockTemplateBuilder miningmanagermodel.BlockTemplateBuilder
}

// GetBlockTemplate creates a block template for a miner to consume
func (mm *miningManager) GetBlockTemplate(parentHash *externalapi.DomainHash, height uint64,
	owner externalapi.PublicKeyHash) *externalapi.DomainBlock {

	return mm.blockTemplateBuilder.GetBlockTemplate(parentHash, height, owner)
}

// HandleChainChange removes the transactions confirmed by addedBlocks from
// the mempool, then revalidates the rest against utxoSet, the UTXO set of
// the new selected tip. It returns the evicted transactions.
func (mm *miningManager) HandleChainChange(addedBlocks []*externalapi.DomainBlock,
	utxoSet consensusmodel.ReadOnlyUTXOSet) []*externalapi.DomainTransaction {

	for _, block := range addedBlocks {
		mm.mempool.DrainConfirmed(block)
	}
	return mm.mempool.Revalidate(utxoSet)
}

// ValidateAndInsertTransaction validates the given transaction, and
// adds it to the set of known transactions that have not yet been
// added to any block
func (mm *miningManager) ValidateAndInsertTransaction(transaction *externalapi.DomainTransaction,
	utxoSet consensusmodel.ReadOnlyUTXOSet) error {

	return mm.mempool.Admit(transaction, utxoSet)
}

// AllTransactions returns all the pooled transactions in admission order
func (mm *miningManager) AllTransactions() []*externalapi.DomainTransaction {
	return mm.mempool.Transactions()
}

// GetTransaction returns the pooled transaction with the given id
func (mm *miningManager) GetTransaction(id *externalapi.DomainTransactionID) (*externalapi.DomainTransaction, bool) {
	return mm.mempool.Transaction(id)
}

// IsSpentByPool returns whether a pooled transaction spends outpoint
func (mm *miningManager) IsSpentByPool(outpoint *externalapi.DomainOutpoint) bool {
	return mm.mempool.IsSpentByPool(outpoint)
}

// TransactionCount returns the number of pooled transactions
func (mm *miningManager) TransactionCount() int {
	return mm.mempool.Count()
}
