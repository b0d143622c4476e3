package serialization

import (
	"io"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
)

// TxEncoding is a bitmask defining which transaction fields we
// want to encode and which to ignore.
type TxEncoding uint8

const (
	// TxEncodingFull encodes every field of the transaction.
	TxEncodingFull TxEncoding = 0

	// TxEncodingExcludeSignature leaves the input signature empty. It is
	// the message a spend's signature commits to.
	TxEncodingExcludeSignature TxEncoding = 1 << iota
)

const (
	txKindCoinbase uint8 = 0
	txKindSpend    uint8 = 1

	// maxTxOutputs bounds the output count read back from storage.
	maxTxOutputs = 1 << 16
)

// SerializeTransaction writes tx to w using the given encoding.
func SerializeTransaction(w io.Writer, tx *externalapi.DomainTransaction, encoding TxEncoding) error {
	switch {
	case tx.Coinbase != nil && tx.Input == nil:
		err := WriteElements(w, txKindCoinbase, tx.Coinbase.Height)
		if err != nil {
			return err
		}
	case tx.Input != nil && tx.Coinbase == nil:
		signature := tx.Input.Signature
		if encoding&TxEncodingExcludeSignature == TxEncodingExcludeSignature {
			signature = []byte{}
		}
		err := WriteElements(w, txKindSpend, tx.Input.PreviousOutpoint.TransactionID,
			tx.Input.PreviousOutpoint.Index, signature, tx.Input.PublicKey)
		if err != nil {
			return err
		}
	default:
		return errors.Wrapf(errMalformed, "a transaction must be exactly one of coinbase or spend")
	}

	err := WriteElement(w, uint64(len(tx.Outputs)))
	if err != nil {
		return err
	}
	for _, output := range tx.Outputs {
		err := WriteElements(w, output.Value, output.Owner)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeserializeTransaction reads a fully encoded transaction from r.
func DeserializeTransaction(r io.Reader) (*externalapi.DomainTransaction, error) {
	tx := &externalapi.DomainTransaction{}

	var kind uint8
	err := ReadElement(r, &kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case txKindCoinbase:
		tx.Coinbase = &externalapi.DomainCoinbase{}
		err := ReadElement(r, &tx.Coinbase.Height)
		if err != nil {
			return nil, err
		}
	case txKindSpend:
		tx.Input = &externalapi.DomainTransactionInput{}
		err := ReadElements(r, &tx.Input.PreviousOutpoint.TransactionID, &tx.Input.PreviousOutpoint.Index,
			&tx.Input.Signature, &tx.Input.PublicKey)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.Wrapf(errMalformed, "unknown transaction kind %d", kind)
	}

	var outputCount uint64
	err = ReadElement(r, &outputCount)
	if err != nil {
		return nil, err
	}
	if outputCount > maxTxOutputs {
		return nil, errors.Wrapf(errMalformed, "too many outputs: %d", outputCount)
	}
	tx.Outputs = make([]*externalapi.DomainTransactionOutput, outputCount)
	for i := range tx.Outputs {
		output := &externalapi.DomainTransactionOutput{}
		err := ReadElements(r, &output.Value, &output.Owner)
		if err != nil {
			return nil, err
		}
		tx.Outputs[i] = output
	}
	return tx, nil
}
