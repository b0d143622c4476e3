// Package nodestate owns the ledger of a single node: the block tree, the
// selected chain with its UTXO set, and the mempool. Every mutation goes
// through NodeState, which serializes them.
package nodestate

import (
	"context"
	"sync"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/datastructures/blockstore"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/blockbuilder"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/blockmanager"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/blockvalidator"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/chainmanager"
	"github.com/tinycrypto/ledgerd/domain/consensus/processes/coinbasemanager"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/mining"
	"github.com/tinycrypto/ledgerd/domain/consensus/utxo"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
	"github.com/tinycrypto/ledgerd/domain/miningmanager"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
)

// NodeState is the single owner of the ledger. Mutations (OnBlock,
// OnTransaction) are exclusive; queries may run concurrently with each
// other but never observe a mutation in progress.
type NodeState struct {
	lock sync.RWMutex

	params   *ledgerconfig.Params
	provider model.CryptoProvider

	blockValidator *blockvalidator.BlockValidator
	blockBuilder   *blockbuilder.BlockBuilder
	blockStore     *blockstore.BlockStore
	blockManager   *blockmanager.BlockManager
	chainManager   *chainmanager.ChainManager
	miningManager  miningmanager.MiningManager

	// snapshots caches the UTXO sets of blocks off the selected chain, by
	// block hash. Entries are never modified.
	snapshots *ttlcache.Cache[externalapi.DomainHash, *utxo.UTXOSet]

	// acceptedBlocks holds the blocks validated during the current call to
	// the BlockManager, with the UTXO effect computed while validating them.
	acceptedBlocks map[externalapi.DomainHash]*acceptedBlock

	// tipChanged is closed, and replaced, whenever the selected tip changes.
	tipChanged chan struct{}

	// halted is set once an internal consistency failure occurred.
	halted error

	notificationsLock sync.RWMutex
	notifications     []NotificationCallback
}

// New builds the genesis block of cfg.Params, accepts it through the normal
// validation path, and replays every block found in db on top of it.
func New(cfg *Config, provider model.CryptoProvider, db blockstore.DataAccessor) (*NodeState, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "nodestate.New")
	defer onEnd()

	initPrometheusMetrics()

	params := cfg.Params
	genesis, err := blockbuilder.BuildGenesis(params, provider)
	if err != nil {
		return nil, errors.Wrap(err, "building the genesis block")
	}
	genesisHash := consensushashing.BlockHash(provider, genesis)

	blockStore, err := blockstore.New(db, cfg.BlockCacheSize)
	if err != nil {
		return nil, err
	}
	coinbaseManager := coinbasemanager.New(params)
	blockBuilder := blockbuilder.New(params, provider, coinbaseManager)

	ns := &NodeState{
		params:         params,
		provider:       provider,
		blockValidator: blockvalidator.New(params, provider, coinbaseManager),
		blockBuilder:   blockBuilder,
		blockStore:     blockStore,
		miningManager:  miningmanager.NewFactory().NewMiningManager(provider, blockBuilder, cfg.Mempool),
		snapshots: ttlcache.New[externalapi.DomainHash, *utxo.UTXOSet](
			ttlcache.WithTTL[externalapi.DomainHash, *utxo.UTXOSet](cfg.SnapshotTTL),
			ttlcache.WithCapacity[externalapi.DomainHash, *utxo.UTXOSet](cfg.SnapshotCacheSize),
		),
		acceptedBlocks: make(map[externalapi.DomainHash]*acceptedBlock),
		tipChanged:     make(chan struct{}),
	}
	ns.blockManager = blockmanager.New(provider, genesisHash, &contextValidator{ns: ns}, blockStore, cfg.BlockManager)

	result, addedNodes, err := ns.blockManager.Accept(genesis)
	if err != nil {
		return nil, err
	}
	if result.Status != externalapi.StatusAccepted {
		return nil, errors.Errorf("genesis block %s was not accepted: %s", genesisHash, result.RejectReason)
	}
	ns.chainManager, err = chainmanager.New(provider, ns.blockManager, addedNodes[0])
	if err != nil {
		return nil, err
	}
	log.Infof("Genesis block %s", genesisHash)

	err = ns.loadArchive()
	if err != nil {
		return nil, err
	}
	ns.updateGauges()
	return ns, nil
}

// OnBlock validates block against the UTXO set of its parent, stores it,
// connects the orphans waiting on it and moves the selected chain to the
// heaviest tip. Rule violations are reported through the result's status;
// an error means the node's state is inconsistent and it must stop.
func (ns *NodeState) OnBlock(block *externalapi.DomainBlock) (*externalapi.BlockInsertionResult, error) {
	ns.lock.Lock()
	result, notifications, err := ns.processBlock(block)
	ns.lock.Unlock()
	if err != nil {
		return nil, err
	}

	prometheusBlocksProcessed.WithLabelValues(result.Status.String()).Inc()
	ns.sendNotifications(notifications)
	return result, nil
}

// processBlock must be called with the state lock held for writing.
func (ns *NodeState) processBlock(block *externalapi.DomainBlock) (
	*externalapi.BlockInsertionResult, []*Notification, error) {

	if ns.halted != nil {
		return nil, nil, ns.halted
	}

	ns.acceptedBlocks = make(map[externalapi.DomainHash]*acceptedBlock)
	defer func() { ns.acceptedBlocks = nil }()

	result, addedNodes, err := ns.blockManager.Accept(block)
	if err != nil {
		return nil, nil, ns.halt(err)
	}

	var notifications []*Notification
	for i, node := range addedNodes {
		ns.chainManager.AddNode(node)
		notifications = append(notifications, &Notification{
			Type: NTBlockAdded,
			Data: &BlockAddedNotificationData{
				Block:         node.Block,
				BlockHash:     &node.Hash,
				WasUnorphaned: i > 0,
			},
		})
	}

	changes, err := ns.updateSelectedTip()
	if err != nil {
		return nil, nil, ns.halt(err)
	}
	if changes != nil {
		result.ChainChanges = changes
		evicted := ns.handleChainChange(changes)
		notifications = append(notifications, &Notification{
			Type: NTChainChanged,
			Data: &ChainChangedNotificationData{
				RemovedChainBlockHashes: changes.Removed,
				AddedChainBlockHashes:   changes.Added,
				EvictedTransactions:     evicted,
			},
		})
	}
	ns.updateGauges()
	return result, notifications, nil
}

// updateSelectedTip moves the selected chain to the best tip. When the best
// tip descends from the selected tip through blocks accepted by this call
// only, their UTXO effects are applied one after the other. Otherwise the
// UTXO set of the new chain is rebuilt from genesis.
func (ns *NodeState) updateSelectedTip() (*externalapi.SelectedChainChanges, error) {
	bestTip := ns.chainManager.BestTip()
	selectedTip := ns.chainManager.SelectedTip()
	if bestTip.Hash.Equal(&selectedTip.Hash) {
		return nil, nil
	}

	var extension []*model.BlockNode
	for current := bestTip; !current.Hash.Equal(&selectedTip.Hash); {
		_, ok := ns.acceptedBlocks[current.Hash]
		if !ok || current.Height <= selectedTip.Height {
			prometheusReorgs.Inc()
			return ns.chainManager.ReorgTo(bestTip)
		}
		extension = append(extension, current)
		parent, ok := ns.blockManager.Node(&current.ParentHash)
		if !ok {
			return nil, errors.Errorf("parent %s of stored block %s is not stored", current.ParentHash, current.Hash)
		}
		current = parent
	}

	changes := &externalapi.SelectedChainChanges{}
	for i := len(extension) - 1; i >= 0; i-- {
		node := extension[i]
		extended, err := ns.chainManager.ExtendTip(node, ns.acceptedBlocks[node.Hash].view)
		if err != nil {
			return nil, err
		}
		changes.Added = append(changes.Added, extended.Added...)
	}
	return changes, nil
}

// handleChainChange brings the mempool in line with the new selected chain
// and wakes up whoever waits on the tip. Transactions of blocks that left
// the selected chain are not returned to the mempool.
func (ns *NodeState) handleChainChange(changes *externalapi.SelectedChainChanges) []*externalapi.DomainTransaction {
	addedBlocks := make([]*externalapi.DomainBlock, 0, len(changes.Added))
	for _, blockHash := range changes.Added {
		node, ok := ns.blockManager.Node(blockHash)
		if !ok {
			continue
		}
		addedBlocks = append(addedBlocks, node.Block)
	}
	evicted := ns.miningManager.HandleChainChange(addedBlocks, ns.chainManager.UTXOSet())
	prometheusEvictedTransactions.Add(float64(len(evicted)))

	close(ns.tipChanged)
	ns.tipChanged = make(chan struct{})

	tip := ns.chainManager.SelectedTip()
	log.Infof("New selected tip %s at height %d (UTXO commitment %s)",
		tip.Hash, tip.Height, ns.chainManager.UTXOSet().Commitment())
	return evicted
}

func (ns *NodeState) halt(err error) error {
	ns.halted = errors.WithStack(InternalConsistencyError{Err: err})
	log.Criticalf("Halting node state: %+v", err)
	return ns.halted
}

// OnTransaction validates transaction against the UTXO set of the selected
// tip combined with the mempool, and adds it to the mempool. Rejections are
// mempool.RuleError values.
func (ns *NodeState) OnTransaction(transaction *externalapi.DomainTransaction) error {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	if ns.halted != nil {
		return ns.halted
	}
	err := ns.miningManager.ValidateAndInsertTransaction(transaction, ns.chainManager.UTXOSet())
	if err != nil {
		prometheusTransactions.WithLabelValues("rejected").Inc()
		return err
	}
	prometheusTransactions.WithLabelValues("accepted").Inc()
	prometheusMempoolSize.Set(float64(ns.miningManager.TransactionCount()))
	return nil
}

// BlockTemplate returns an unsolved block on top of the selected tip that
// includes the mempool, paying the reward to owner. The returned channel is
// closed once the selected tip changes, which makes the template stale.
func (ns *NodeState) BlockTemplate(owner externalapi.PublicKeyHash) (*externalapi.DomainBlock, <-chan struct{}, error) {
	ns.lock.RLock()
	defer ns.lock.RUnlock()

	if ns.halted != nil {
		return nil, nil, ns.halted
	}
	tip := ns.chainManager.SelectedTip()
	template := ns.miningManager.GetBlockTemplate(&tip.Hash, tip.Height+1, owner)
	return template, ns.tipChanged, nil
}

// MineBlock mines a block on top of the selected tip that includes the
// mempool and pays the reward to minerPublicKey, then submits it through
// OnBlock like any received block. The state lock is not held while
// searching for the nonce; if the selected tip changes meanwhile, the search
// restarts on a fresh template.
func (ns *NodeState) MineBlock(ctx context.Context, minerPublicKey []byte) (*externalapi.BlockInsertionResult, error) {
	owner, err := ns.provider.PublicKeyHash(minerPublicKey)
	if err != nil {
		return nil, err
	}

	for {
		template, tipChanged, err := ns.BlockTemplate(owner)
		if err != nil {
			return nil, err
		}
		err = ns.blockBuilder.Solve(ctx, template, tipChanged)
		if errors.Is(err, mining.ErrAborted) {
			log.Debugf("Selected tip moved away from %s while mining, restarting",
				template.Header.PreviousBlockHash)
			continue
		}
		if err != nil {
			return nil, err
		}
		return ns.OnBlock(template)
	}
}
