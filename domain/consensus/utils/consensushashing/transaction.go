package consensushashing

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/serialization"
)

// TransactionID generates the ID of the given transaction: the hash of its
// full serialization.
func TransactionID(hasher model.CryptoProvider, tx *externalapi.DomainTransaction) *externalapi.DomainTransactionID {
	serialized := serializeOrPanic(tx, serialization.TxEncodingFull)
	return (*externalapi.DomainTransactionID)(hasher.Hash(serialized))
}

// TransactionIDs returns the IDs of the given transactions, in order.
func TransactionIDs(hasher model.CryptoProvider, txs []*externalapi.DomainTransaction) []*externalapi.DomainTransactionID {
	ids := make([]*externalapi.DomainTransactionID, len(txs))
	for i, tx := range txs {
		ids[i] = TransactionID(hasher, tx)
	}
	return ids
}

// SigningMessage returns the bytes a spend's signature commits to: the
// transaction serialized with an empty signature.
func SigningMessage(tx *externalapi.DomainTransaction) []byte {
	return serializeOrPanic(tx, serialization.TxEncodingExcludeSignature)
}

func serializeOrPanic(tx *externalapi.DomainTransaction, encoding serialization.TxEncoding) []byte {
	var buf bytes.Buffer
	err := serialization.SerializeTransaction(&buf, tx, encoding)
	if err != nil {
		// Writing to a bytes.Buffer can't fail, so the only way to get here
		// is a transaction that is both or neither coinbase and spend.
		panic(errors.Wrap(err, "TransactionID() failed. this should never fail for structurally-valid transactions"))
	}
	return buf.Bytes()
}
