package utxo

import (
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
)

// DiffView is a layer of additions and removals over a read-only base set.
// Reads consult the layer first and fall through to the base, so a chain of
// transactions can be validated in order while the base stays untouched.
type DiffView struct {
	base     model.ReadOnlyUTXOSet
	toAdd    map[externalapi.DomainOutpoint]*externalapi.DomainTransactionOutput
	toRemove map[externalapi.DomainOutpoint]*externalapi.DomainTransactionOutput
}

// NewDiffView returns an empty layer over base.
func NewDiffView(base model.ReadOnlyUTXOSet) *DiffView {
	return &DiffView{
		base:     base,
		toAdd:    make(map[externalapi.DomainOutpoint]*externalapi.DomainTransactionOutput),
		toRemove: make(map[externalapi.DomainOutpoint]*externalapi.DomainTransactionOutput),
	}
}

// Get returns the output at outpoint as seen through the layer.
func (dv *DiffView) Get(outpoint *externalapi.DomainOutpoint) (*externalapi.DomainTransactionOutput, bool) {
	if output, ok := dv.toAdd[*outpoint]; ok {
		return output, true
	}
	if _, ok := dv.toRemove[*outpoint]; ok {
		return nil, false
	}
	return dv.base.Get(outpoint)
}

// AddTransaction records tx's spend and outputs in the layer. tx must
// already have been validated against the view.
func (dv *DiffView) AddTransaction(provider model.CryptoProvider, tx *externalapi.DomainTransaction) error {
	if !tx.IsCoinbase() {
		outpoint := tx.Input.PreviousOutpoint
		if _, ok := dv.toAdd[outpoint]; ok {
			delete(dv.toAdd, outpoint)
		} else {
			output, ok := dv.base.Get(&outpoint)
			if !ok {
				return errors.Errorf("outpoint %s is not unspent in the view", outpoint)
			}
			if _, ok := dv.toRemove[outpoint]; ok {
				return errors.Errorf("outpoint %s is already spent in the view", outpoint)
			}
			dv.toRemove[outpoint] = output
		}
	}

	txID := consensushashing.TransactionID(provider, tx)
	for i, output := range tx.Outputs {
		outpoint := externalapi.DomainOutpoint{TransactionID: *txID, Index: uint32(i)}
		if _, ok := dv.Get(&outpoint); ok {
			return errors.Errorf("outpoint %s is already unspent in the view", outpoint)
		}
		dv.toAdd[outpoint] = output
	}
	return nil
}

// Base returns the set the layer reads through to.
func (dv *DiffView) Base() model.ReadOnlyUTXOSet {
	return dv.base
}

// ApplyDiff commits the additions and removals of diff, which must have been
// built over s or over a set with the same entries. Every removal and
// addition is checked before s is touched, so a failing ApplyDiff leaves s
// as it was.
func (s *UTXOSet) ApplyDiff(diff *DiffView) error {
	for outpoint := range diff.toRemove {
		if !s.entries.Has(outpoint) {
			return errors.Errorf("diff removes outpoint %s which is not unspent", outpoint)
		}
	}
	for outpoint := range diff.toAdd {
		if s.entries.Has(outpoint) {
			if _, removed := diff.toRemove[outpoint]; !removed {
				return errors.Errorf("diff adds outpoint %s which is already unspent", outpoint)
			}
		}
	}

	for outpoint := range diff.toRemove {
		_, err := s.remove(outpoint)
		if err != nil {
			return err
		}
	}
	for outpoint, output := range diff.toAdd {
		err := s.add(outpoint, output)
		if err != nil {
			return err
		}
	}
	return nil
}
