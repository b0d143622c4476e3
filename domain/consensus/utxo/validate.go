package utxo

import (
	"math"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/ruleerrors"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
)

// CheckTransactionStructure checks the rules that need nothing but the
// transaction itself: it is exactly one of coinbase or spend, it has
// outputs, and its output values sum without overflowing. It returns the
// sum of the output values.
func CheckTransactionStructure(tx *externalapi.DomainTransaction) (uint64, error) {
	if (tx.Coinbase == nil) == (tx.Input == nil) {
		return 0, errors.Wrapf(ruleerrors.ErrBadTransactionStructure,
			"a transaction must be exactly one of a coinbase or a spend")
	}
	if len(tx.Outputs) == 0 {
		return 0, errors.WithStack(ruleerrors.ErrNoTxOutputs)
	}

	total := uint64(0)
	for i, output := range tx.Outputs {
		if output == nil {
			return 0, errors.Wrapf(ruleerrors.ErrBadTransactionStructure, "output %d is missing", i)
		}
		if total > math.MaxUint64-output.Value {
			return 0, errors.Wrapf(ruleerrors.ErrBadTxOutValue,
				"total value of all transaction outputs overflows at output %d", i)
		}
		total += output.Value
	}
	return total, nil
}

// ValidateTransaction checks tx against view, the state it would be applied
// to. For a spend it checks, in order, that the spent outpoint is unspent in
// view, that the spending public key hashes to the output's owner, that the
// signature covers the transaction, and that the outputs are worth no more
// than the spent output. It returns the value of the spent output; a
// coinbase passes with value zero, its amount being the block's concern.
func ValidateTransaction(provider model.CryptoProvider, tx *externalapi.DomainTransaction,
	view model.ReadOnlyUTXOSet) (uint64, error) {

	outputsValue, err := CheckTransactionStructure(tx)
	if err != nil {
		return 0, err
	}
	if tx.IsCoinbase() {
		return 0, nil
	}

	input := tx.Input
	spent, ok := view.Get(&input.PreviousOutpoint)
	if !ok {
		return 0, ruleerrors.NewErrUnknownOutput(input.PreviousOutpoint)
	}

	publicKeyHash, err := provider.PublicKeyHash(input.PublicKey)
	if err != nil {
		return 0, errors.Wrapf(ruleerrors.ErrOwnershipMismatch, "malformed public key: %s", err)
	}
	if publicKeyHash != spent.Owner {
		return 0, errors.Wrapf(ruleerrors.ErrOwnershipMismatch,
			"public key hash %s does not own outpoint %s (owner %s)",
			publicKeyHash, input.PreviousOutpoint, spent.Owner)
	}

	if !provider.Verify(input.PublicKey, consensushashing.SigningMessage(tx), input.Signature) {
		return 0, errors.Wrapf(ruleerrors.ErrInvalidSignature,
			"signature spending outpoint %s does not verify", input.PreviousOutpoint)
	}

	if outputsValue > spent.Value {
		return 0, ruleerrors.NewErrInsufficientFunds(spent.Value, outputsValue)
	}
	return spent.Value, nil
}
