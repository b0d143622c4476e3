package nodestate

import (
	"context"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/coinbasemanager"
	"github.com/tinycrypto/ledgerd/domain/consensus/ruleerrors"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/cryptoprovider"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/testutils"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/transactionhelper"
	"github.com/tinycrypto/ledgerd/domain/consensus/utxo"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
	"github.com/tinycrypto/ledgerd/domain/miningmanager/mempool"
	"github.com/tinycrypto/ledgerd/infrastructure/db/database/ldb"
)

type fixture struct {
	t        *testing.T
	params   *ledgerconfig.Params
	provider model.CryptoProvider
	alice    *testutils.Wallet
	bob      *testutils.Wallet
	carol    *testutils.Wallet
}

// newFixture returns simnet params whose genesis reward is paid to alice.
func newFixture(t *testing.T) *fixture {
	provider := cryptoprovider.New()
	f := &fixture{
		t:        t,
		params:   testutils.SimnetParams(),
		provider: provider,
		alice:    testutils.NewWallet(t, provider, 1),
		bob:      testutils.NewWallet(t, provider, 2),
		carol:    testutils.NewWallet(t, provider, 3),
	}
	f.params.GenesisOwner = f.alice.Owner
	return f
}

func (f *fixture) newDB() *ldb.LevelDB {
	db, err := ldb.NewInMemoryLevelDB()
	if err != nil {
		f.t.Fatalf("%s: NewInMemoryLevelDB: %+v", f.t.Name(), err)
	}
	f.t.Cleanup(func() { db.Close() })
	return db
}

func (f *fixture) newNodeState(db *ldb.LevelDB) *NodeState {
	ns, err := New(DefaultConfig(f.params), f.provider, db)
	if err != nil {
		f.t.Fatalf("%s: New: %+v", f.t.Name(), err)
	}
	return ns
}

func (f *fixture) genesis(ns *NodeState) *externalapi.DomainBlock {
	genesis, ok := ns.BlockByHash(ns.GenesisHash())
	if !ok {
		f.t.Fatalf("%s: genesis block is not stored", f.t.Name())
	}
	return genesis
}

func (f *fixture) buildBlock(parent *externalapi.DomainBlock, height uint64, owner externalapi.PublicKeyHash,
	txs ...*externalapi.DomainTransaction) *externalapi.DomainBlock {

	return testutils.BuildBlock(f.t, f.provider, f.params, consensushashing.BlockHash(f.provider, parent), height,
		coinbasemanager.CalcBlockSubsidy(height, f.params), owner, txs...)
}

func (f *fixture) submit(ns *NodeState, block *externalapi.DomainBlock,
	expected externalapi.BlockStatus) *externalapi.BlockInsertionResult {

	f.t.Helper()
	result, err := ns.OnBlock(block)
	if err != nil {
		f.t.Fatalf("%s: OnBlock: %+v", f.t.Name(), err)
	}
	if result.Status != expected {
		f.t.Fatalf("%s: expected block %s to be %s, got %s: %+v",
			f.t.Name(), result.BlockHash, expected, result.Status, result.RejectReason)
	}
	return result
}

func (f *fixture) hash(block *externalapi.DomainBlock) *externalapi.DomainHash {
	return consensushashing.BlockHash(f.provider, block)
}

func TestSpendGenesisCoinbase(t *testing.T) {
	f := newFixture(t)
	ns := f.newNodeState(f.newDB())
	genesis := f.genesis(ns)
	if ns.Height() != 0 || ns.Balance(f.alice.Owner) != f.params.GenesisReward {
		t.Fatalf("TestSpendGenesisCoinbase: unexpected initial state: height %d, alice has %d",
			ns.Height(), ns.Balance(f.alice.Owner))
	}

	genesisOutpoint := transactionhelper.Outpoint(f.provider, genesis.Transactions[0], 0)
	toBob := testutils.Spend(t, f.provider, f.alice, genesisOutpoint, 50, f.bob.Owner, 50)
	block1 := f.buildBlock(genesis, 1, f.carol.Owner, toBob)
	result := f.submit(ns, block1, externalapi.StatusAccepted)

	if result.ChainChanges == nil || !externalapi.HashesEqual(result.ChainChanges.Added,
		[]*externalapi.DomainHash{f.hash(block1)}) || len(result.ChainChanges.Removed) != 0 {
		t.Fatalf("TestSpendGenesisCoinbase: unexpected chain changes: %s", spew.Sdump(result.ChainChanges))
	}
	if ns.Height() != 1 || !ns.TipHash().Equal(f.hash(block1)) {
		t.Fatalf("TestSpendGenesisCoinbase: block 1 is not the selected tip")
	}
	if _, ok := ns.UTXO(&genesisOutpoint); ok {
		t.Fatalf("TestSpendGenesisCoinbase: the genesis coinbase output is still unspent")
	}
	bobOutpoint := transactionhelper.Outpoint(f.provider, toBob, 0)
	output, ok := ns.UTXO(&bobOutpoint)
	if !ok || output.Value != 50 || output.Owner != f.bob.Owner {
		t.Fatalf("TestSpendGenesisCoinbase: bob's output is missing: %s", spew.Sdump(output))
	}
	if ns.Balance(f.alice.Owner) != 0 || ns.Balance(f.carol.Owner) != 50 {
		t.Fatalf("TestSpendGenesisCoinbase: unexpected balances: alice %d, carol %d",
			ns.Balance(f.alice.Owner), ns.Balance(f.carol.Owner))
	}
	bobAddress := cryptoprovider.EncodeAddress(f.bob.Owner)
	balance, err := ns.BalanceByAddress(bobAddress)
	if err != nil || balance != 50 {
		t.Fatalf("TestSpendGenesisCoinbase: BalanceByAddress(%s) = %d, %v", bobAddress, balance, err)
	}

	expected, err := utxo.RebuildFrom(f.provider, []*externalapi.DomainBlock{genesis, block1})
	if err != nil {
		t.Fatalf("TestSpendGenesisCoinbase: RebuildFrom: %+v", err)
	}
	if !ns.UTXOCommitment().Equal(expected.Commitment()) {
		t.Fatalf("TestSpendGenesisCoinbase: UTXO commitment differs from a rebuild")
	}

	f.submit(ns, block1, externalapi.StatusRejected)
}

func TestRejectedBlockLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ns := f.newNodeState(f.newDB())
	genesis := f.genesis(ns)
	commitment := ns.UTXOCommitment()

	unknownOutpoint := externalapi.DomainOutpoint{TransactionID: externalapi.DomainTransactionID{0x01}}
	bogus := testutils.Spend(t, f.provider, f.alice, unknownOutpoint, 50, f.bob.Owner, 50)
	result := f.submit(ns, f.buildBlock(genesis, 1, f.alice.Owner, bogus), externalapi.StatusRejected)
	if !errors.Is(result.RejectReason, ruleerrors.ErrUnknownOutput) {
		t.Fatalf("TestRejectedBlockLeavesStateUntouched: expected ErrUnknownOutput, got %+v", result.RejectReason)
	}

	wrongHeight := testutils.BuildBlock(t, f.provider, f.params, f.hash(genesis), 2,
		coinbasemanager.CalcBlockSubsidy(2, f.params), f.alice.Owner)
	result = f.submit(ns, wrongHeight, externalapi.StatusRejected)
	if !errors.Is(result.RejectReason, ruleerrors.ErrBadCoinbaseHeight) {
		t.Fatalf("TestRejectedBlockLeavesStateUntouched: expected ErrBadCoinbaseHeight, got %+v", result.RejectReason)
	}

	if ns.BlockCount() != 1 || ns.Height() != 0 || !ns.UTXOCommitment().Equal(commitment) {
		t.Fatalf("TestRejectedBlockLeavesStateUntouched: state changed after rejections")
	}
}

func TestRewardSchedule(t *testing.T) {
	f := newFixture(t)
	f.params.SubsidyReductionInterval = 2
	ns := f.newNodeState(f.newDB())

	parent := f.genesis(ns)
	expectedBalance := f.params.GenesisReward
	for height := uint64(1); height <= 4; height++ {
		block := f.buildBlock(parent, height, f.alice.Owner)
		f.submit(ns, block, externalapi.StatusAccepted)
		expectedBalance += f.params.GenesisReward >> (height / 2)
		parent = block
	}
	if balance := ns.Balance(f.alice.Owner); balance != expectedBalance || balance != 162 {
		t.Fatalf("TestRewardSchedule: expected a balance of %d, got %d", expectedBalance, balance)
	}

	overpaying := testutils.BuildBlock(t, f.provider, f.params, f.hash(parent), 5, f.params.GenesisReward, f.alice.Owner)
	result := f.submit(ns, overpaying, externalapi.StatusRejected)
	if !errors.Is(result.RejectReason, ruleerrors.ErrInvalidCoinbaseReward) {
		t.Fatalf("TestRewardSchedule: expected ErrInvalidCoinbaseReward, got %+v", result.RejectReason)
	}
	f.submit(ns, f.buildBlock(parent, 5, f.alice.Owner), externalapi.StatusAccepted)
}

func TestMempoolDoubleSpendAndMining(t *testing.T) {
	f := newFixture(t)
	ns := f.newNodeState(f.newDB())
	genesisOutpoint := transactionhelper.Outpoint(f.provider, f.genesis(ns).Transactions[0], 0)

	toBob := testutils.Spend(t, f.provider, f.alice, genesisOutpoint, 50, f.bob.Owner, 50)
	toCarol := testutils.Spend(t, f.provider, f.alice, genesisOutpoint, 50, f.carol.Owner, 50)
	err := ns.OnTransaction(toBob)
	if err != nil {
		t.Fatalf("TestMempoolDoubleSpendAndMining: OnTransaction: %+v", err)
	}
	err = ns.OnTransaction(toCarol)
	if !mempool.IsMempoolConflict(err) {
		t.Fatalf("TestMempoolDoubleSpendAndMining: expected a mempool conflict, got %+v", err)
	}
	if ns.MempoolSize() != 1 {
		t.Fatalf("TestMempoolDoubleSpendAndMining: expected 1 pooled transaction, got %d", ns.MempoolSize())
	}

	miner := testutils.NewWallet(t, f.provider, 4)
	result, err := ns.MineBlock(context.Background(), miner.PublicKey)
	if err != nil {
		t.Fatalf("TestMempoolDoubleSpendAndMining: MineBlock: %+v", err)
	}
	if result.Status != externalapi.StatusAccepted || !ns.TipHash().Equal(result.BlockHash) {
		t.Fatalf("TestMempoolDoubleSpendAndMining: mined block was not selected: %s", spew.Sdump(result))
	}
	if ns.MempoolSize() != 0 {
		t.Fatalf("TestMempoolDoubleSpendAndMining: mined transaction is still pooled")
	}
	if ns.Balance(f.bob.Owner) != 50 || ns.Balance(miner.Owner) != 50 || ns.Balance(f.carol.Owner) != 0 {
		t.Fatalf("TestMempoolDoubleSpendAndMining: unexpected balances after mining")
	}

	// The losing spend is now invalid against the chain itself.
	err = ns.OnTransaction(toCarol)
	if !errors.Is(err, ruleerrors.ErrUnknownOutput) {
		t.Fatalf("TestMempoolDoubleSpendAndMining: expected ErrUnknownOutput, got %+v", err)
	}
}

func TestOrphanPromotion(t *testing.T) {
	f := newFixture(t)
	ns := f.newNodeState(f.newDB())
	block1 := f.buildBlock(f.genesis(ns), 1, f.alice.Owner)
	block2 := f.buildBlock(block1, 2, f.alice.Owner)

	f.submit(ns, block2, externalapi.StatusOrphaned)
	missing := ns.MissingAncestors(f.hash(block2))
	if !externalapi.HashesEqual(missing, []*externalapi.DomainHash{f.hash(block1)}) {
		t.Fatalf("TestOrphanPromotion: unexpected missing ancestors: %s", spew.Sdump(missing))
	}
	if ns.Height() != 0 || ns.OrphanCount() != 1 {
		t.Fatalf("TestOrphanPromotion: orphan changed the selected chain")
	}

	result := f.submit(ns, block1, externalapi.StatusAccepted)
	if !externalapi.HashesEqual(result.UnorphanedBlocks, []*externalapi.DomainHash{f.hash(block2)}) {
		t.Fatalf("TestOrphanPromotion: unexpected unorphaned blocks: %s", spew.Sdump(result.UnorphanedBlocks))
	}
	if !externalapi.HashesEqual(result.ChainChanges.Added, []*externalapi.DomainHash{f.hash(block1), f.hash(block2)}) {
		t.Fatalf("TestOrphanPromotion: unexpected chain changes: %s", spew.Sdump(result.ChainChanges))
	}
	if ns.Height() != 2 || ns.OrphanCount() != 0 || ns.Balance(f.alice.Owner) != 150 {
		t.Fatalf("TestOrphanPromotion: unexpected state: height %d, %d orphans, alice has %d",
			ns.Height(), ns.OrphanCount(), ns.Balance(f.alice.Owner))
	}
}

func TestReorgEvictsMempoolTransactions(t *testing.T) {
	f := newFixture(t)
	ns := f.newNodeState(f.newDB())
	var evicted []*externalapi.DomainTransaction
	ns.Subscribe(func(notification *Notification) {
		if notification.Type == NTChainChanged {
			evicted = append(evicted, notification.Data.(*ChainChangedNotificationData).EvictedTransactions...)
		}
	})

	genesis := f.genesis(ns)
	toBob := testutils.Spend(t, f.provider, f.alice,
		transactionhelper.Outpoint(f.provider, genesis.Transactions[0], 0), 50, f.bob.Owner, 50)
	block1 := f.buildBlock(genesis, 1, f.alice.Owner, toBob)
	f.submit(ns, block1, externalapi.StatusAccepted)

	bobToCarol := testutils.Spend(t, f.provider, f.bob,
		transactionhelper.Outpoint(f.provider, toBob, 0), 50, f.carol.Owner, 50)
	err := ns.OnTransaction(bobToCarol)
	if err != nil {
		t.Fatalf("TestReorgEvictsMempoolTransactions: OnTransaction: %+v", err)
	}

	// block1 and its competitor have equal work: the lower hash is selected.
	competitor := f.buildBlock(genesis, 1, f.carol.Owner)
	f.submit(ns, competitor, externalapi.StatusAccepted)
	competitorWins := f.hash(competitor).Less(f.hash(block1))
	expectedTip := f.hash(block1)
	if competitorWins {
		expectedTip = f.hash(competitor)
	}
	if !ns.TipHash().Equal(expectedTip) {
		t.Fatalf("TestReorgEvictsMempoolTransactions: expected tip %s, got %s", expectedTip, ns.TipHash())
	}
	if competitorWins != (ns.MempoolSize() == 0) {
		t.Fatalf("TestReorgEvictsMempoolTransactions: unexpected mempool size %d", ns.MempoolSize())
	}

	block2 := f.buildBlock(competitor, 2, f.carol.Owner)
	result := f.submit(ns, block2, externalapi.StatusAccepted)
	if !ns.TipHash().Equal(f.hash(block2)) {
		t.Fatalf("TestReorgEvictsMempoolTransactions: the heavier branch was not selected")
	}
	if !competitorWins && !externalapi.HashesEqual(result.ChainChanges.Removed, []*externalapi.DomainHash{f.hash(block1)}) {
		t.Fatalf("TestReorgEvictsMempoolTransactions: unexpected chain changes: %s", spew.Sdump(result.ChainChanges))
	}
	if !externalapi.HashesEqual(ns.SelectedChain(), []*externalapi.DomainHash{
		ns.GenesisHash(), f.hash(competitor), f.hash(block2)}) {
		t.Fatalf("TestReorgEvictsMempoolTransactions: unexpected selected chain: %s", spew.Sdump(ns.SelectedChain()))
	}

	if ns.MempoolSize() != 0 || len(evicted) != 1 || evicted[0] != bobToCarol {
		t.Fatalf("TestReorgEvictsMempoolTransactions: expected bobToCarol to be evicted exactly once, "+
			"mempool has %d, evicted %d", ns.MempoolSize(), len(evicted))
	}
	if ns.Balance(f.alice.Owner) != 50 || ns.Balance(f.bob.Owner) != 0 || ns.Balance(f.carol.Owner) != 100 {
		t.Fatalf("TestReorgEvictsMempoolTransactions: unexpected balances after reorg")
	}
	expected, err := utxo.RebuildFrom(f.provider, []*externalapi.DomainBlock{genesis, competitor, block2})
	if err != nil {
		t.Fatalf("TestReorgEvictsMempoolTransactions: RebuildFrom: %+v", err)
	}
	if !ns.UTXOCommitment().Equal(expected.Commitment()) {
		t.Fatalf("TestReorgEvictsMempoolTransactions: UTXO commitment differs from a rebuild")
	}

	// Extending the abandoned branch validates against its own UTXO set.
	bobToCarolOnBlock1 := f.buildBlock(block1, 2, f.alice.Owner, bobToCarol)
	f.submit(ns, bobToCarolOnBlock1, externalapi.StatusAccepted)
	if ns.TipHash().Equal(f.hash(bobToCarolOnBlock1)) != f.hash(bobToCarolOnBlock1).Less(f.hash(block2)) {
		t.Fatalf("TestReorgEvictsMempoolTransactions: tie between height 2 blocks was not broken by hash")
	}
}

func TestTieBreakIsOrderIndependent(t *testing.T) {
	f := newFixture(t)
	first := f.newNodeState(f.newDB())
	second := f.newNodeState(f.newDB())
	genesis := f.genesis(first)

	blockA := f.buildBlock(genesis, 1, f.alice.Owner)
	blockB := f.buildBlock(genesis, 1, f.bob.Owner)
	f.submit(first, blockA, externalapi.StatusAccepted)
	f.submit(first, blockB, externalapi.StatusAccepted)
	f.submit(second, blockB, externalapi.StatusAccepted)
	f.submit(second, blockA, externalapi.StatusAccepted)

	expectedTip := f.hash(blockA)
	if f.hash(blockB).Less(expectedTip) {
		expectedTip = f.hash(blockB)
	}
	if !first.TipHash().Equal(expectedTip) || !second.TipHash().Equal(expectedTip) {
		t.Fatalf("TestTieBreakIsOrderIndependent: expected both tips to be %s, got %s and %s",
			expectedTip, first.TipHash(), second.TipHash())
	}
	if !first.UTXOCommitment().Equal(second.UTXOCommitment()) {
		t.Fatalf("TestTieBreakIsOrderIndependent: UTXO commitments differ")
	}
}

func TestArchiveReload(t *testing.T) {
	f := newFixture(t)
	db := f.newDB()
	ns := f.newNodeState(db)
	genesis := f.genesis(ns)

	block1 := f.buildBlock(genesis, 1, f.alice.Owner)
	block2 := f.buildBlock(block1, 2, f.bob.Owner)
	fork := f.buildBlock(genesis, 1, f.carol.Owner)
	for _, block := range []*externalapi.DomainBlock{block1, block2, fork} {
		f.submit(ns, block, externalapi.StatusAccepted)
	}

	reloaded := f.newNodeState(db)
	if reloaded.BlockCount() != 4 {
		t.Fatalf("TestArchiveReload: expected 4 blocks after reload, got %d", reloaded.BlockCount())
	}
	if !reloaded.TipHash().Equal(ns.TipHash()) || !reloaded.UTXOCommitment().Equal(ns.UTXOCommitment()) {
		t.Fatalf("TestArchiveReload: reloaded state differs: tip %s instead of %s", reloaded.TipHash(), ns.TipHash())
	}
	if !externalapi.HashesEqual(reloaded.SelectedChain(), ns.SelectedChain()) {
		t.Fatalf("TestArchiveReload: reloaded selected chain differs")
	}
}

func TestBlockTemplateGoesStale(t *testing.T) {
	f := newFixture(t)
	ns := f.newNodeState(f.newDB())
	genesis := f.genesis(ns)

	template, tipChanged, err := ns.BlockTemplate(f.bob.Owner)
	if err != nil {
		t.Fatalf("TestBlockTemplateGoesStale: BlockTemplate: %+v", err)
	}
	if !template.Header.PreviousBlockHash.Equal(ns.GenesisHash()) {
		t.Fatalf("TestBlockTemplateGoesStale: template does not extend the genesis block")
	}
	select {
	case <-tipChanged:
		t.Fatalf("TestBlockTemplateGoesStale: template is stale before the tip changed")
	default:
	}

	f.submit(ns, f.buildBlock(genesis, 1, f.alice.Owner), externalapi.StatusAccepted)
	select {
	case <-tipChanged:
	default:
		t.Fatalf("TestBlockTemplateGoesStale: template is not stale after the tip changed")
	}
}

func TestMineBlockRestartsOnTipChange(t *testing.T) {
	f := newFixture(t)
	ns := f.newNodeState(f.newDB())
	genesis := f.genesis(ns)
	competitor := f.buildBlock(genesis, 1, f.bob.Owner)

	// The first template gets a target of 1, which no hash realistically
	// meets, so only a tip change lets MineBlock finish.
	easyBits := f.params.PowBits
	f.params.PowBits = 0x01010000

	type mineResult struct {
		result *externalapi.BlockInsertionResult
		err    error
	}
	mined := make(chan mineResult, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go func() {
		result, err := ns.MineBlock(ctx, f.carol.PublicKey)
		mined <- mineResult{result: result, err: err}
	}()
	time.Sleep(100 * time.Millisecond)

	// The target is restored in the same critical section that connects the
	// competitor, so any template built on the genesis block is unsolvable.
	ns.lock.Lock()
	f.params.PowBits = easyBits
	result, notifications, err := ns.processBlock(competitor)
	ns.lock.Unlock()
	if err != nil {
		t.Fatalf("TestMineBlockRestartsOnTipChange: processBlock: %+v", err)
	}
	ns.sendNotifications(notifications)
	if result.Status != externalapi.StatusAccepted {
		t.Fatalf("TestMineBlockRestartsOnTipChange: competitor is %s: %+v", result.Status, result.RejectReason)
	}

	outcome := <-mined
	if outcome.err != nil {
		t.Fatalf("TestMineBlockRestartsOnTipChange: MineBlock: %+v", outcome.err)
	}
	if outcome.result.Status != externalapi.StatusAccepted || !ns.TipHash().Equal(outcome.result.BlockHash) {
		t.Fatalf("TestMineBlockRestartsOnTipChange: mined block was not selected: %s", spew.Sdump(outcome.result))
	}
	minedBlock, ok := ns.BlockByHash(outcome.result.BlockHash)
	if !ok {
		t.Fatalf("TestMineBlockRestartsOnTipChange: mined block is not stored")
	}
	if !minedBlock.Header.PreviousBlockHash.Equal(f.hash(competitor)) || ns.Height() != 2 {
		t.Fatalf("TestMineBlockRestartsOnTipChange: mined block extends %s at height %d instead of the competitor",
			minedBlock.Header.PreviousBlockHash, ns.Height())
	}
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	ns := f.newNodeState(f.newDB())
	counts := make(map[NotificationType]int)
	const numSubscribers = 3
	for i := 0; i < numSubscribers; i++ {
		ns.Subscribe(func(notification *Notification) {
			counts[notification.Type]++
		})
	}

	block1 := f.buildBlock(f.genesis(ns), 1, f.alice.Owner)
	block2 := f.buildBlock(block1, 2, f.alice.Owner)
	f.submit(ns, block2, externalapi.StatusOrphaned)
	if len(counts) != 0 {
		t.Fatalf("TestNotifications: orphan caused notifications: %v", counts)
	}
	f.submit(ns, block1, externalapi.StatusAccepted)
	if counts[NTBlockAdded] != 2*numSubscribers || counts[NTChainChanged] != numSubscribers {
		t.Fatalf("TestNotifications: unexpected notification counts: %v", counts)
	}
}
