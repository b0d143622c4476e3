package transactionhelper

import (
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
)

// NewCoinbaseTransaction returns the coinbase of the block at height, paying
// reward to owner.
func NewCoinbaseTransaction(height uint64, reward uint64, owner externalapi.PublicKeyHash) *externalapi.DomainTransaction {
	return &externalapi.DomainTransaction{
		Coinbase: &externalapi.DomainCoinbase{Height: height},
		Outputs:  []*externalapi.DomainTransactionOutput{{Value: reward, Owner: owner}},
	}
}

// NewSpendTransaction returns a transaction spending outpoint into outputs,
// signed with privateKey. publicKey must be the matching public key.
func NewSpendTransaction(provider model.CryptoProvider, outpoint externalapi.DomainOutpoint,
	outputs []*externalapi.DomainTransactionOutput, privateKey []byte, publicKey []byte) (*externalapi.DomainTransaction, error) {

	tx := &externalapi.DomainTransaction{
		Input: &externalapi.DomainTransactionInput{
			PreviousOutpoint: outpoint,
			PublicKey:        publicKey,
		},
		Outputs: outputs,
	}
	signature, err := provider.Sign(privateKey, consensushashing.SigningMessage(tx))
	if err != nil {
		return nil, err
	}
	tx.Input.Signature = signature
	return tx, nil
}

// Outpoint returns the outpoint of tx's output at index.
func Outpoint(provider model.CryptoProvider, tx *externalapi.DomainTransaction, index uint32) externalapi.DomainOutpoint {
	return externalapi.DomainOutpoint{
		TransactionID: *consensushashing.TransactionID(provider, tx),
		Index:         index,
	}
}
