package testutils

import (
	"context"
	"testing"

	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/mining"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/transactionhelper"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
)

// SolveBlock fills in block's merkle root and searches for a valid nonce.
func SolveBlock(t testing.TB, provider model.CryptoProvider, block *externalapi.DomainBlock) {
	t.Helper()
	block.Header.MerkleRoot = *consensushashing.MerkleRoot(provider, block.Transactions)
	err := mining.SolveBlock(context.Background(), provider, block, 0, nil, nil)
	if err != nil {
		t.Fatalf("SolveBlock: %+v", err)
	}
}

// BuildBlock returns a solved block at height on top of parentHash, paying
// the coinbase reward to owner and including txs after the coinbase. The
// header time is derived from height so sibling blocks with identical
// content get identical hashes. A zero parentHash builds a genesis block.
func BuildBlock(t testing.TB, provider model.CryptoProvider, params *ledgerconfig.Params,
	parentHash *externalapi.DomainHash, height uint64, reward uint64, owner externalapi.PublicKeyHash,
	txs ...*externalapi.DomainTransaction) *externalapi.DomainBlock {

	t.Helper()
	bits := params.PowBits
	if parentHash.IsZero() {
		bits = params.GenesisBits
	}
	transactions := append([]*externalapi.DomainTransaction{
		transactionhelper.NewCoinbaseTransaction(height, reward, owner),
	}, txs...)
	block := &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:            params.BlockVersion,
			PreviousBlockHash:  *parentHash,
			TimeInMilliseconds: params.GenesisTimeInMilliseconds + int64(height)*1000,
			Bits:               bits,
		},
		Transactions: transactions,
	}
	SolveBlock(t, provider, block)
	return block
}

// Spend returns a transaction in which from spends outpoint, worth value,
// paying amount to to and the change back to itself.
func Spend(t testing.TB, provider model.CryptoProvider, from *Wallet, outpoint externalapi.DomainOutpoint,
	value uint64, to externalapi.PublicKeyHash, amount uint64) *externalapi.DomainTransaction {

	t.Helper()
	outputs := []*externalapi.DomainTransactionOutput{{Value: amount, Owner: to}}
	if value > amount {
		outputs = append(outputs, &externalapi.DomainTransactionOutput{Value: value - amount, Owner: from.Owner})
	}
	tx, err := transactionhelper.NewSpendTransaction(provider, outpoint, outputs, from.PrivateKey, from.PublicKey)
	if err != nil {
		t.Fatalf("Spend: %+v", err)
	}
	return tx
}
