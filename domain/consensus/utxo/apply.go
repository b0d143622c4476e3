package utxo

import (
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
)

// ApplyTransaction removes the outpoint tx spends and adds tx's outputs. tx
// is assumed valid; ApplyTransaction only refuses changes that would break
// the set itself, and leaves the set unchanged when it does.
func (s *UTXOSet) ApplyTransaction(provider model.CryptoProvider, tx *externalapi.DomainTransaction) error {
	if !tx.IsCoinbase() && !s.entries.Has(tx.Input.PreviousOutpoint) {
		return errors.Errorf("cannot apply transaction: outpoint %s is not unspent", tx.Input.PreviousOutpoint)
	}
	txID := consensushashing.TransactionID(provider, tx)
	for i := range tx.Outputs {
		outpoint := externalapi.DomainOutpoint{TransactionID: *txID, Index: uint32(i)}
		if s.entries.Has(outpoint) {
			return errors.Errorf("cannot apply transaction %s: output %d is already unspent", txID, i)
		}
	}

	if !tx.IsCoinbase() {
		_, err := s.remove(tx.Input.PreviousOutpoint)
		if err != nil {
			return err
		}
	}
	for i, output := range tx.Outputs {
		err := s.add(externalapi.DomainOutpoint{TransactionID: *txID, Index: uint32(i)}, output)
		if err != nil {
			return err
		}
	}
	return nil
}

// RevertTransaction undoes ApplyTransaction: it removes tx's outputs and,
// for a spend, restores spentOutput at the outpoint tx spent. spentOutput is
// ignored for a coinbase.
func (s *UTXOSet) RevertTransaction(provider model.CryptoProvider, tx *externalapi.DomainTransaction,
	spentOutput *externalapi.DomainTransactionOutput) error {

	txID := consensushashing.TransactionID(provider, tx)
	for i := range tx.Outputs {
		outpoint := externalapi.DomainOutpoint{TransactionID: *txID, Index: uint32(i)}
		if !s.entries.Has(outpoint) {
			return errors.Errorf("cannot revert transaction %s: output %d is not unspent", txID, i)
		}
	}
	if !tx.IsCoinbase() {
		if spentOutput == nil {
			return errors.Errorf("cannot revert transaction %s without the output it spent", txID)
		}
		if s.entries.Has(tx.Input.PreviousOutpoint) {
			return errors.Errorf("cannot revert transaction %s: outpoint %s is already unspent",
				txID, tx.Input.PreviousOutpoint)
		}
	}

	for i := range tx.Outputs {
		_, err := s.remove(externalapi.DomainOutpoint{TransactionID: *txID, Index: uint32(i)})
		if err != nil {
			return err
		}
	}
	if !tx.IsCoinbase() {
		return s.add(tx.Input.PreviousOutpoint, spentOutput)
	}
	return nil
}

// ApplyBlock applies every transaction of block in order.
func (s *UTXOSet) ApplyBlock(provider model.CryptoProvider, block *externalapi.DomainBlock) error {
	for i, tx := range block.Transactions {
		err := s.ApplyTransaction(provider, tx)
		if err != nil {
			return errors.Wrapf(err, "transaction %d", i)
		}
	}
	return nil
}

// RebuildFrom builds the set produced by applying blocks, genesis first, to
// an empty set. The blocks are expected to have been validated; an error
// means they were not, or that they are out of order.
func RebuildFrom(provider model.CryptoProvider, blocks []*externalapi.DomainBlock) (*UTXOSet, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "utxo.RebuildFrom")
	defer onEnd()

	set := New()
	for height, block := range blocks {
		err := set.ApplyBlock(provider, block)
		if err != nil {
			return nil, errors.Wrapf(err, "rebuilding UTXO set at height %d", height)
		}
	}
	log.Debugf("Rebuilt UTXO set from %d blocks: %d unspent outputs", len(blocks), set.Len())
	return set, nil
}
