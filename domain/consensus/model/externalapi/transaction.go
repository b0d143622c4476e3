package externalapi

import (
	"encoding/hex"
	"fmt"
)

// PublicKeyHashSize is the size of a hash160 of a public key.
const PublicKeyHashSize = 20

// PublicKeyHash identifies the owner of an output.
type PublicKeyHash [PublicKeyHashSize]byte

// String returns the PublicKeyHash as a hexadecimal string.
func (pkh PublicKeyHash) String() string {
	return hex.EncodeToString(pkh[:])
}

// DomainTransactionID represents the ID of a transaction
type DomainTransactionID DomainHash

// String stringifies a transaction ID.
func (id DomainTransactionID) String() string {
	return hex.EncodeToString(id[:])
}

// DomainOutpoint identifies a single output of a transaction
type DomainOutpoint struct {
	TransactionID DomainTransactionID
	Index         uint32
}

// String stringifies an outpoint.
func (op DomainOutpoint) String() string {
	return fmt.Sprintf("%s:%d", op.TransactionID, op.Index)
}

// DomainTransactionOutput is a spendable amount locked to the owner's public
// key hash
type DomainTransactionOutput struct {
	Value uint64
	Owner PublicKeyHash
}

// DomainCoinbase marks a transaction as the reward-minting transaction of the
// block at Height.
type DomainCoinbase struct {
	Height uint64
}

// DomainTransactionInput spends a single outpoint, proving ownership with a
// signature made by PublicKey.
type DomainTransactionInput struct {
	PreviousOutpoint DomainOutpoint
	Signature        []byte
	PublicKey        []byte
}

// DomainTransaction is either a coinbase (Coinbase set, Input nil) or a spend
// (Input set, Coinbase nil). Transactions are treated as immutable once
// created.
type DomainTransaction struct {
	Coinbase *DomainCoinbase
	Input    *DomainTransactionInput
	Outputs  []*DomainTransactionOutput
}

// IsCoinbase returns whether the transaction mints a block reward.
func (tx *DomainTransaction) IsCoinbase() bool {
	return tx.Coinbase != nil
}

// Clone returns a deep copy of the transaction.
func (tx *DomainTransaction) Clone() *DomainTransaction {
	clone := &DomainTransaction{
		Outputs: make([]*DomainTransactionOutput, len(tx.Outputs)),
	}
	if tx.Coinbase != nil {
		coinbase := *tx.Coinbase
		clone.Coinbase = &coinbase
	}
	if tx.Input != nil {
		clone.Input = &DomainTransactionInput{
			PreviousOutpoint: tx.Input.PreviousOutpoint,
			Signature:        append([]byte(nil), tx.Input.Signature...),
			PublicKey:        append([]byte(nil), tx.Input.PublicKey...),
		}
	}
	for i, output := range tx.Outputs {
		outputClone := *output
		clone.Outputs[i] = &outputClone
	}
	return clone
}
