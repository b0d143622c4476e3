package blockvalidator

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/coinbasemanager"
	"github.com/tinycrypto/ledgerd/domain/consensus/ruleerrors"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/cryptoprovider"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/mining"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/pow"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/testutils"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/transactionhelper"
	"github.com/tinycrypto/ledgerd/domain/consensus/utxo"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
)

type fixture struct {
	provider      model.CryptoProvider
	params        *ledgerconfig.Params
	validator     *BlockValidator
	alice, bob    *testutils.Wallet
	genesis       *externalapi.DomainBlock
	genesisNode   *model.BlockNode
	genesisUTXO   *utxo.UTXOSet
	aliceOutpoint externalapi.DomainOutpoint
}

func newFixture(t *testing.T) *fixture {
	provider := cryptoprovider.New()
	params := testutils.SimnetParams()
	params.BlockSizeLimit = 4
	f := &fixture{
		provider:  provider,
		params:    params,
		validator: New(params, provider, coinbasemanager.New(params)),
		alice:     testutils.NewWallet(t, provider, 1),
		bob:       testutils.NewWallet(t, provider, 2),
	}

	f.genesis = testutils.BuildBlock(t, provider, params, &externalapi.ZeroHash, 0, params.GenesisReward, f.alice.Owner)
	_, err := f.validator.ValidateBlock(f.genesis, nil, utxo.New())
	if err != nil {
		t.Fatalf("newFixture: genesis does not validate: %+v", err)
	}
	f.genesisUTXO = utxo.New()
	err = f.genesisUTXO.ApplyBlock(provider, f.genesis)
	if err != nil {
		t.Fatalf("newFixture: %+v", err)
	}
	f.genesisNode = &model.BlockNode{
		Hash:           *consensushashing.BlockHash(provider, f.genesis),
		Block:          f.genesis,
		CumulativeWork: pow.CalcWork(f.genesis.Header.Bits),
	}
	f.aliceOutpoint = transactionhelper.Outpoint(provider, f.genesis.Transactions[0], 0)
	return f
}

// resolve searches a nonce for block without touching its merkle root.
func resolve(t *testing.T, provider model.CryptoProvider, block *externalapi.DomainBlock) {
	err := mining.SolveBlock(context.Background(), provider, block, block.Header.Nonce+1, nil, nil)
	if err != nil {
		t.Fatalf("resolve: %+v", err)
	}
}

func (f *fixture) child(t *testing.T, txs ...*externalapi.DomainTransaction) *externalapi.DomainBlock {
	return testutils.BuildBlock(t, f.provider, f.params, &f.genesisNode.Hash, 1, f.params.GenesisReward, f.bob.Owner, txs...)
}

func TestValidateBlock(t *testing.T) {
	f := newFixture(t)

	aliceToBob := testutils.Spend(t, f.provider, f.alice, f.aliceOutpoint, 50, f.bob.Owner, 30)
	bobOutpoint := transactionhelper.Outpoint(f.provider, aliceToBob, 0)
	bobToAlice := testutils.Spend(t, f.provider, f.bob, bobOutpoint, 30, f.alice.Owner, 30)

	tests := []struct {
		name        string
		block       func() *externalapi.DomainBlock
		expectedErr error
	}{
		{
			name:  "coinbase only",
			block: func() *externalapi.DomainBlock { return f.child(t) },
		},
		{
			name:  "chained spends within the block",
			block: func() *externalapi.DomainBlock { return f.child(t, aliceToBob, bobToAlice) },
		},
		{
			name:        "spend before the spend it depends on",
			block:       func() *externalapi.DomainBlock { return f.child(t, bobToAlice, aliceToBob) },
			expectedErr: ruleerrors.ErrUnknownOutput,
		},
		{
			name: "double spend within the block",
			block: func() *externalapi.DomainBlock {
				other := testutils.Spend(t, f.provider, f.alice, f.aliceOutpoint, 50, f.alice.Owner, 50)
				return f.child(t, aliceToBob, other)
			},
			expectedErr: ruleerrors.ErrUnknownOutput,
		},
		{
			name:        "too many transactions",
			block:       func() *externalapi.DomainBlock { return f.child(t, aliceToBob, bobToAlice, aliceToBob, bobToAlice) },
			expectedErr: ruleerrors.ErrTooManyTransactions,
		},
		{
			name:        "duplicate transaction",
			block:       func() *externalapi.DomainBlock { return f.child(t, aliceToBob, aliceToBob) },
			expectedErr: ruleerrors.ErrDuplicateTransaction,
		},
		{
			name: "wrong bits",
			block: func() *externalapi.DomainBlock {
				block := f.child(t)
				block.Header.Bits = f.params.GenesisBits
				resolve(t, f.provider, block)
				return block
			},
			expectedErr: ruleerrors.ErrUnexpectedDifficulty,
		},
		{
			name: "insufficient proof of work",
			block: func() *externalapi.DomainBlock {
				block := f.child(t)
				target := pow.CompactToBig(block.Header.Bits)
				for {
					block.Header.Nonce++
					hash := consensushashing.BlockHash(f.provider, block)
					if pow.HashToBig(hash).Cmp(target) > 0 {
						return block
					}
				}
			},
			expectedErr: ruleerrors.ErrProofOfWorkInvalid,
		},
		{
			name: "merkle root mismatch",
			block: func() *externalapi.DomainBlock {
				block := f.child(t, aliceToBob)
				block.Header.MerkleRoot = *consensushashing.MerkleRoot(f.provider, block.Transactions[:1])
				resolve(t, f.provider, block)
				return block
			},
			expectedErr: ruleerrors.ErrMerkleRootMismatch,
		},
		{
			name: "first transaction is not a coinbase",
			block: func() *externalapi.DomainBlock {
				block := f.child(t, aliceToBob)
				block.Transactions[0], block.Transactions[1] = block.Transactions[1], block.Transactions[0]
				testutils.SolveBlock(t, f.provider, block)
				return block
			},
			expectedErr: ruleerrors.ErrFirstTxNotCoinbase,
		},
		{
			name: "second coinbase",
			block: func() *externalapi.DomainBlock {
				return f.child(t, transactionhelper.NewCoinbaseTransaction(1, 50, f.alice.Owner))
			},
			expectedErr: ruleerrors.ErrMultipleCoinbases,
		},
		{
			name: "coinbase pays too much",
			block: func() *externalapi.DomainBlock {
				return testutils.BuildBlock(t, f.provider, f.params, &f.genesisNode.Hash, 1, 51, f.bob.Owner)
			},
			expectedErr: ruleerrors.ErrInvalidCoinbaseReward,
		},
		{
			name: "coinbase at the wrong height",
			block: func() *externalapi.DomainBlock {
				block := f.child(t)
				block.Transactions[0] = transactionhelper.NewCoinbaseTransaction(2, 50, f.bob.Owner)
				testutils.SolveBlock(t, f.provider, block)
				return block
			},
			expectedErr: ruleerrors.ErrBadCoinbaseHeight,
		},
		{
			name: "overspend",
			block: func() *externalapi.DomainBlock {
				return f.child(t, testutils.Spend(t, f.provider, f.alice, f.aliceOutpoint, 50, f.bob.Owner, 51))
			},
			expectedErr: ruleerrors.ErrInsufficientFunds,
		},
	}

	for _, test := range tests {
		before := f.genesisUTXO.Commitment()
		_, err := f.validator.ValidateBlock(test.block(), f.genesisNode, f.genesisUTXO)
		if !f.genesisUTXO.Commitment().Equal(before) {
			t.Fatalf("TestValidateBlock: %s: validation modified the UTXO snapshot", test.name)
		}
		if test.expectedErr == nil {
			if err != nil {
				t.Fatalf("TestValidateBlock: %s: unexpected error: %+v", test.name, err)
			}
			continue
		}
		if !errors.Is(err, test.expectedErr) {
			t.Fatalf("TestValidateBlock: %s: expected %v, got %+v", test.name, test.expectedErr, err)
		}
	}
}

func TestValidateBlockResultingView(t *testing.T) {
	f := newFixture(t)
	aliceToBob := testutils.Spend(t, f.provider, f.alice, f.aliceOutpoint, 50, f.bob.Owner, 30)
	block := f.child(t, aliceToBob)

	view, err := f.validator.ValidateBlock(block, f.genesisNode, f.genesisUTXO)
	if err != nil {
		t.Fatalf("TestValidateBlockResultingView: %+v", err)
	}
	err = f.genesisUTXO.ApplyDiff(view)
	if err != nil {
		t.Fatalf("TestValidateBlockResultingView: ApplyDiff: %+v", err)
	}

	rebuilt, err := utxo.RebuildFrom(f.provider, []*externalapi.DomainBlock{f.genesis, block})
	if err != nil {
		t.Fatalf("TestValidateBlockResultingView: RebuildFrom: %+v", err)
	}
	if !rebuilt.Commitment().Equal(f.genesisUTXO.Commitment()) {
		t.Fatalf("TestValidateBlockResultingView: applying the view and rebuilding disagree")
	}
	if f.genesisUTXO.Contains(&f.aliceOutpoint) {
		t.Fatalf("TestValidateBlockResultingView: genesis coinbase is still unspent")
	}
}

func TestValidateGenesis(t *testing.T) {
	testutils.ForAllNets(t, func(t *testing.T, params *ledgerconfig.Params) {
		provider := cryptoprovider.New()
		validator := New(params, provider, coinbasemanager.New(params))
		owner := testutils.NewWallet(t, provider, 1).Owner

		genesis := testutils.BuildBlock(t, provider, params, &externalapi.ZeroHash, 0, params.GenesisReward, owner)
		_, err := validator.ValidateBlock(genesis, nil, utxo.New())
		if err != nil {
			t.Fatalf("TestValidateGenesis: %+v", err)
		}

		parent := &model.BlockNode{Hash: externalapi.DomainHash{1}, CumulativeWork: big.NewInt(1)}
		_, err = validator.ValidateBlockInContext(genesis, parent, utxo.New())
		if err == nil || ruleerrors.IsRuleError(err) {
			t.Fatalf("TestValidateGenesis: expected a non-rule error for a mismatched parent, got %+v", err)
		}
	})
}
