// Package mempool holds validated transactions that wait to be included in a
// block.
package mempool

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utxo"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
)

type mempoolTransaction struct {
	transaction *externalapi.DomainTransaction
	id          externalapi.DomainTransactionID
	sequence    uint64
}

// Mempool is the pool of unconfirmed transactions. Pooled transactions are
// valid against the UTXO set they were last checked against, extended with
// the outputs of the transactions pooled before them, and no two of them
// spend the same outpoint.
//
// Mempool is not safe for concurrent use.
type Mempool struct {
	provider model.CryptoProvider
	cfg      *Config

	pool           map[externalapi.DomainTransactionID]*mempoolTransaction
	spentOutpoints map[externalapi.DomainOutpoint]externalapi.DomainTransactionID
	nextSequence   uint64
}

// New instantiates a new, empty Mempool
func New(provider model.CryptoProvider, cfg *Config) *Mempool {
	return &Mempool{
		provider:       provider,
		cfg:            cfg,
		pool:           make(map[externalapi.DomainTransactionID]*mempoolTransaction),
		spentOutpoints: make(map[externalapi.DomainOutpoint]externalapi.DomainTransactionID),
	}
}

// Admit validates transaction against utxoSet combined with the effects of
// the pooled transactions, and pools it. The first transaction to spend an
// outpoint wins: later ones are rejected as conflicts.
func (mp *Mempool) Admit(transaction *externalapi.DomainTransaction, utxoSet model.ReadOnlyUTXOSet) error {
	_, err := utxo.CheckTransactionStructure(transaction)
	if err != nil {
		return RuleError{Err: err}
	}
	if transaction.IsCoinbase() {
		return txRuleError(RejectInvalid, "coinbase transactions are only valid in blocks")
	}

	id := *consensushashing.TransactionID(mp.provider, transaction)
	onEnd := logger.LogAndMeasureExecutionTime(log, fmt.Sprintf("Admit %s", id))
	defer onEnd()

	if _, exists := mp.pool[id]; exists {
		return txRuleError(RejectDuplicate, fmt.Sprintf("already have transaction %s", id))
	}
	outpoint := transaction.Input.PreviousOutpoint
	if conflicting, spent := mp.spentOutpoints[outpoint]; spent {
		return txRuleError(RejectConflict, fmt.Sprintf("output %s already spent by "+
			"transaction %s in the memory pool", outpoint, conflicting))
	}
	if len(mp.pool) >= mp.cfg.MaximumTransactionCount {
		return txRuleError(RejectFull, fmt.Sprintf("mempool is full: it already holds %d transactions",
			len(mp.pool)))
	}

	_, err = utxo.ValidateTransaction(mp.provider, transaction, mp.projectedView(utxoSet))
	if err != nil {
		return RuleError{Err: err}
	}

	mp.pool[id] = &mempoolTransaction{
		transaction: transaction,
		id:          id,
		sequence:    mp.nextSequence,
	}
	mp.nextSequence++
	mp.spentOutpoints[outpoint] = id
	log.Debugf("Accepted transaction %s (pool size: %d)", id, len(mp.pool))
	return nil
}

// DrainConfirmed removes the pooled transactions that block includes. It
// returns the number of removed transactions.
func (mp *Mempool) DrainConfirmed(block *externalapi.DomainBlock) int {
	removed := 0
	for _, transaction := range block.Transactions {
		if transaction.IsCoinbase() {
			continue
		}
		id := consensushashing.TransactionID(mp.provider, transaction)
		if mp.removeTransaction(id) {
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("Removed %d transactions confirmed by block %s",
			removed, consensushashing.BlockHash(mp.provider, block))
	}
	return removed
}

// Revalidate checks every pooled transaction again, in the order they were
// admitted, against newUTXOSet. Transactions that no longer validate, and
// transactions depending on them, are evicted and returned.
func (mp *Mempool) Revalidate(newUTXOSet model.ReadOnlyUTXOSet) []*externalapi.DomainTransaction {
	onEnd := logger.LogAndMeasureExecutionTime(log, "Revalidate")
	defer onEnd()

	previous := mp.orderedTransactions()
	mp.pool = make(map[externalapi.DomainTransactionID]*mempoolTransaction, len(previous))
	mp.spentOutpoints = make(map[externalapi.DomainOutpoint]externalapi.DomainTransactionID, len(previous))

	var evicted []*externalapi.DomainTransaction
	for _, mempoolTx := range previous {
		err := mp.Admit(mempoolTx.transaction, newUTXOSet)
		if err != nil {
			var ruleErr RuleError
			if !errors.As(err, &ruleErr) {
				log.Errorf("Unexpected error revalidating transaction %s: %+v", mempoolTx.id, err)
			}
			log.Debugf("Evicted transaction %s: %s", mempoolTx.id, err)
			evicted = append(evicted, mempoolTx.transaction)
		}
	}
	if len(evicted) > 0 {
		log.Infof("Evicted %d transactions that no longer validate", len(evicted))
	}
	return evicted
}

// Count returns the number of pooled transactions.
func (mp *Mempool) Count() int {
	return len(mp.pool)
}

// Transactions returns the pooled transactions in the order they were
// admitted. Every transaction comes after the pooled transactions it spends
// from.
func (mp *Mempool) Transactions() []*externalapi.DomainTransaction {
	ordered := mp.orderedTransactions()
	transactions := make([]*externalapi.DomainTransaction, len(ordered))
	for i, mempoolTx := range ordered {
		transactions[i] = mempoolTx.transaction
	}
	return transactions
}

// Has returns whether the transaction with the given id is pooled.
func (mp *Mempool) Has(id *externalapi.DomainTransactionID) bool {
	_, ok := mp.pool[*id]
	return ok
}

// Transaction returns the pooled transaction with the given id.
func (mp *Mempool) Transaction(id *externalapi.DomainTransactionID) (*externalapi.DomainTransaction, bool) {
	mempoolTx, ok := mp.pool[*id]
	if !ok {
		return nil, false
	}
	return mempoolTx.transaction, true
}

// IsSpentByPool returns whether a pooled transaction spends outpoint.
func (mp *Mempool) IsSpentByPool(outpoint *externalapi.DomainOutpoint) bool {
	_, ok := mp.spentOutpoints[*outpoint]
	return ok
}

func (mp *Mempool) removeTransaction(id *externalapi.DomainTransactionID) bool {
	mempoolTx, ok := mp.pool[*id]
	if !ok {
		return false
	}
	delete(mp.pool, *id)
	delete(mp.spentOutpoints, mempoolTx.transaction.Input.PreviousOutpoint)
	return true
}

func (mp *Mempool) orderedTransactions() []*mempoolTransaction {
	ordered := make([]*mempoolTransaction, 0, len(mp.pool))
	for _, mempoolTx := range mp.pool {
		ordered = append(ordered, mempoolTx)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].sequence < ordered[j].sequence
	})
	return ordered
}
