package mempool

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/ruleerrors"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/cryptoprovider"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/testutils"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/transactionhelper"
	"github.com/tinycrypto/ledgerd/domain/consensus/utxo"
)

type fixture struct {
	t        *testing.T
	provider model.CryptoProvider
	alice    *testutils.Wallet
	bob      *testutils.Wallet
	carol    *testutils.Wallet
	coinbase *externalapi.DomainTransaction
	set      *utxo.UTXOSet
	mempool  *Mempool
}

func newFixture(t *testing.T, cfg *Config) *fixture {
	provider := cryptoprovider.New()
	f := &fixture{
		t:        t,
		provider: provider,
		alice:    testutils.NewWallet(t, provider, 1),
		bob:      testutils.NewWallet(t, provider, 2),
		carol:    testutils.NewWallet(t, provider, 3),
		set:      utxo.New(),
		mempool:  New(provider, cfg),
	}
	f.coinbase = transactionhelper.NewCoinbaseTransaction(0, 50, f.alice.Owner)
	err := f.set.ApplyTransaction(provider, f.coinbase)
	if err != nil {
		t.Fatalf("newFixture: %+v", err)
	}
	return f
}

func (f *fixture) admit(tx *externalapi.DomainTransaction) {
	f.t.Helper()
	err := f.mempool.Admit(tx, f.set)
	if err != nil {
		f.t.Fatalf("%s: Admit: %+v", f.t.Name(), err)
	}
}

func expectRejectCode(t *testing.T, err error, expected RejectCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected %s, got no error", t.Name(), expected)
	}
	code, ok := ExtractRejectCode(err)
	if !ok || code != expected {
		t.Fatalf("%s: expected %s, got %+v", t.Name(), expected, err)
	}
}

func TestFirstSeenWinsDoubleSpend(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	outpoint := transactionhelper.Outpoint(f.provider, f.coinbase, 0)
	toBob := testutils.Spend(t, f.provider, f.alice, outpoint, 50, f.bob.Owner, 50)
	toCarol := testutils.Spend(t, f.provider, f.alice, outpoint, 50, f.carol.Owner, 10)

	f.admit(toBob)
	err := f.mempool.Admit(toCarol, f.set)
	expectRejectCode(t, err, RejectConflict)
	if !IsMempoolConflict(err) {
		t.Fatalf("TestFirstSeenWinsDoubleSpend: expected a mempool conflict, got %+v", err)
	}
	if f.mempool.Count() != 1 || !f.mempool.Has(consensushashing.TransactionID(f.provider, toBob)) {
		t.Fatalf("TestFirstSeenWinsDoubleSpend: expected only the first spend in the pool")
	}
	if !f.mempool.IsSpentByPool(&outpoint) {
		t.Fatalf("TestFirstSeenWinsDoubleSpend: outpoint %s is not marked as spent", outpoint)
	}
}

func TestChainedPoolSpend(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	toBob := testutils.Spend(t, f.provider, f.alice, transactionhelper.Outpoint(f.provider, f.coinbase, 0),
		50, f.bob.Owner, 30)
	bobToCarol := testutils.Spend(t, f.provider, f.bob, transactionhelper.Outpoint(f.provider, toBob, 0),
		30, f.carol.Owner, 30)

	// bob's output does not exist until toBob is pooled.
	err := f.mempool.Admit(bobToCarol, f.set)
	if !errors.Is(err, ruleerrors.ErrUnknownOutput) {
		t.Fatalf("TestChainedPoolSpend: expected ErrUnknownOutput, got %+v", err)
	}
	expectRejectCode(t, err, RejectInvalid)

	f.admit(toBob)
	f.admit(bobToCarol)

	transactions := f.mempool.Transactions()
	if len(transactions) != 2 || transactions[0] != toBob || transactions[1] != bobToCarol {
		t.Fatalf("TestChainedPoolSpend: unexpected pool order")
	}
}

func TestAdmitRejections(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	outpoint := transactionhelper.Outpoint(f.provider, f.coinbase, 0)
	toBob := testutils.Spend(t, f.provider, f.alice, outpoint, 50, f.bob.Owner, 50)
	f.admit(toBob)

	err := f.mempool.Admit(toBob, f.set)
	expectRejectCode(t, err, RejectDuplicate)

	err = f.mempool.Admit(transactionhelper.NewCoinbaseTransaction(1, 50, f.bob.Owner), f.set)
	expectRejectCode(t, err, RejectInvalid)

	err = f.mempool.Admit(&externalapi.DomainTransaction{}, f.set)
	if !errors.Is(err, ruleerrors.ErrBadTransactionStructure) {
		t.Fatalf("TestAdmitRejections: expected ErrBadTransactionStructure, got %+v", err)
	}

	// bob signs for an output owned by carol.
	carolCoinbase := transactionhelper.NewCoinbaseTransaction(1, 50, f.carol.Owner)
	err = f.set.ApplyTransaction(f.provider, carolCoinbase)
	if err != nil {
		t.Fatalf("TestAdmitRejections: %+v", err)
	}
	theft := testutils.Spend(t, f.provider, f.bob, transactionhelper.Outpoint(f.provider, carolCoinbase, 0),
		50, f.bob.Owner, 50)
	err = f.mempool.Admit(theft, f.set)
	if !errors.Is(err, ruleerrors.ErrOwnershipMismatch) {
		t.Fatalf("TestAdmitRejections: expected ErrOwnershipMismatch, got %+v", err)
	}
	if f.mempool.Count() != 1 {
		t.Fatalf("TestAdmitRejections: expected 1 pooled transaction, got %d", f.mempool.Count())
	}
}

func TestMempoolFull(t *testing.T) {
	f := newFixture(t, &Config{MaximumTransactionCount: 1})
	secondCoinbase := transactionhelper.NewCoinbaseTransaction(1, 50, f.alice.Owner)
	err := f.set.ApplyTransaction(f.provider, secondCoinbase)
	if err != nil {
		t.Fatalf("TestMempoolFull: %+v", err)
	}

	f.admit(testutils.Spend(t, f.provider, f.alice, transactionhelper.Outpoint(f.provider, f.coinbase, 0),
		50, f.bob.Owner, 50))
	err = f.mempool.Admit(testutils.Spend(t, f.provider, f.alice,
		transactionhelper.Outpoint(f.provider, secondCoinbase, 0), 50, f.bob.Owner, 50), f.set)
	expectRejectCode(t, err, RejectFull)
}

func TestDrainConfirmedAndRevalidate(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	toBob := testutils.Spend(t, f.provider, f.alice, transactionhelper.Outpoint(f.provider, f.coinbase, 0),
		50, f.bob.Owner, 50)
	bobToCarol := testutils.Spend(t, f.provider, f.bob, transactionhelper.Outpoint(f.provider, toBob, 0),
		50, f.carol.Owner, 50)
	f.admit(toBob)
	f.admit(bobToCarol)

	block := &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{},
		Transactions: []*externalapi.DomainTransaction{
			transactionhelper.NewCoinbaseTransaction(1, 50, f.carol.Owner),
			toBob,
		},
	}
	err := f.set.ApplyBlock(f.provider, block)
	if err != nil {
		t.Fatalf("TestDrainConfirmedAndRevalidate: %+v", err)
	}

	removed := f.mempool.DrainConfirmed(block)
	if removed != 1 {
		t.Fatalf("TestDrainConfirmedAndRevalidate: expected 1 drained transaction, got %d", removed)
	}
	evicted := f.mempool.Revalidate(f.set)
	if len(evicted) != 0 || f.mempool.Count() != 1 {
		t.Fatalf("TestDrainConfirmedAndRevalidate: expected bobToCarol to survive, evicted %d", len(evicted))
	}

	// Against a set in which toBob never happened, bobToCarol spends nothing.
	evicted = f.mempool.Revalidate(utxo.New())
	if len(evicted) != 1 || evicted[0] != bobToCarol {
		t.Fatalf("TestDrainConfirmedAndRevalidate: expected bobToCarol to be evicted")
	}
	if f.mempool.Count() != 0 {
		t.Fatalf("TestDrainConfirmedAndRevalidate: expected an empty pool, got %d", f.mempool.Count())
	}
}

func TestRevalidateEvictsDependents(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	toBob := testutils.Spend(t, f.provider, f.alice, transactionhelper.Outpoint(f.provider, f.coinbase, 0),
		50, f.bob.Owner, 50)
	bobToCarol := testutils.Spend(t, f.provider, f.bob, transactionhelper.Outpoint(f.provider, toBob, 0),
		50, f.carol.Owner, 50)
	f.admit(toBob)
	f.admit(bobToCarol)

	evicted := f.mempool.Revalidate(utxo.New())
	if len(evicted) != 2 || evicted[0] != toBob || evicted[1] != bobToCarol {
		t.Fatalf("TestRevalidateEvictsDependents: expected both transactions evicted in admission order")
	}
	outpoint := transactionhelper.Outpoint(f.provider, f.coinbase, 0)
	if f.mempool.IsSpentByPool(&outpoint) {
		t.Fatalf("TestRevalidateEvictsDependents: evicted spend still marks its outpoint")
	}
}
