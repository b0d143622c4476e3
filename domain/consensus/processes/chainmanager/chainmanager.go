// Package chainmanager tracks the heaviest block of the block tree and keeps
// the UTXO set of the chain leading to it.
package chainmanager

import (
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utxo"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
)

// NodeLookup resolves block hashes to stored nodes.
type NodeLookup interface {
	Node(blockHash *externalapi.DomainHash) (*model.BlockNode, bool)
}

// ChainManager holds the selected chain: the path from genesis to the
// selected tip, together with its UTXO set. Only whole chains are swapped
// in, so the tip, the chain and the UTXO set always agree.
//
// ChainManager is not safe for concurrent use.
type ChainManager struct {
	provider model.CryptoProvider
	nodes    NodeLookup

	bestTip       *model.BlockNode
	selectedTip   *model.BlockNode
	selectedChain []*model.BlockNode
	utxoSet       *utxo.UTXOSet
}

// New instantiates a new ChainManager whose selected chain is genesis alone.
func New(provider model.CryptoProvider, nodes NodeLookup, genesis *model.BlockNode) (*ChainManager, error) {
	if !genesis.IsGenesis() {
		return nil, errors.Errorf("block %s is not a genesis block", genesis.Hash)
	}
	utxoSet, err := utxo.RebuildFrom(provider, []*externalapi.DomainBlock{genesis.Block})
	if err != nil {
		return nil, err
	}
	return &ChainManager{
		provider:      provider,
		nodes:         nodes,
		bestTip:       genesis,
		selectedTip:   genesis,
		selectedChain: []*model.BlockNode{genesis},
		utxoSet:       utxoSet,
	}, nil
}

// AddNode makes a newly stored node a candidate for the best tip. It
// returns whether node became the best tip.
func (cm *ChainManager) AddNode(node *model.BlockNode) bool {
	if !node.HeavierThan(cm.bestTip) {
		return false
	}
	cm.bestTip = node
	return true
}

// BestTip returns the node with the most cumulative work, the lowest hash
// winning among equals. The result only depends on the set of nodes added,
// not on the order they were added in.
func (cm *ChainManager) BestTip() *model.BlockNode {
	return cm.bestTip
}

// SelectedTip returns the tip of the selected chain.
func (cm *ChainManager) SelectedTip() *model.BlockNode {
	return cm.selectedTip
}

// UTXOSet returns the UTXO set at the selected tip. It is replaced, not
// modified, by ReorgTo; callers must not modify it.
func (cm *ChainManager) UTXOSet() *utxo.UTXOSet {
	return cm.utxoSet
}

// SelectedChain returns the hashes of the selected chain, genesis first.
func (cm *ChainManager) SelectedChain() []*externalapi.DomainHash {
	hashes := make([]*externalapi.DomainHash, len(cm.selectedChain))
	for i, node := range cm.selectedChain {
		hashes[i] = &node.Hash
	}
	return hashes
}

// IsInSelectedChain returns whether blockHash is on the selected chain.
func (cm *ChainManager) IsInSelectedChain(blockHash *externalapi.DomainHash) bool {
	node, ok := cm.nodes.Node(blockHash)
	if !ok || node.Height >= uint64(len(cm.selectedChain)) {
		return false
	}
	return cm.selectedChain[node.Height].Hash.Equal(blockHash)
}

// Path returns the nodes from genesis to node, inclusive.
func (cm *ChainManager) Path(node *model.BlockNode) ([]*model.BlockNode, error) {
	path := make([]*model.BlockNode, node.Height+1)
	current := node
	for i := len(path) - 1; ; i-- {
		if current.Height != uint64(i) {
			return nil, errors.Errorf("node %s has height %d but is at height %d of the path to %s",
				current.Hash, current.Height, i, node.Hash)
		}
		path[i] = current
		if i == 0 {
			break
		}
		parent, ok := cm.nodes.Node(&current.ParentHash)
		if !ok {
			return nil, errors.Errorf("parent %s of %s is not stored", current.ParentHash, current.Hash)
		}
		current = parent
	}
	if !path[0].IsGenesis() {
		return nil, errors.Errorf("path to %s does not start at a genesis block", node.Hash)
	}
	return path, nil
}

// ExtendTip makes node, a child of the selected tip, the new selected tip.
// diff must be the effect of node's block on the current UTXO set, as
// produced when validating it.
func (cm *ChainManager) ExtendTip(node *model.BlockNode, diff *utxo.DiffView) (*externalapi.SelectedChainChanges, error) {
	if !node.ParentHash.Equal(&cm.selectedTip.Hash) {
		return nil, errors.Errorf("block %s does not extend the selected tip %s", node.Hash, cm.selectedTip.Hash)
	}
	err := cm.utxoSet.ApplyDiff(diff)
	if err != nil {
		return nil, errors.Wrapf(err, "extending the selected tip with %s", node.Hash)
	}
	cm.selectedTip = node
	cm.selectedChain = append(cm.selectedChain, node)
	log.Debugf("Selected tip extended to %s at height %d", node.Hash, node.Height)
	return &externalapi.SelectedChainChanges{Added: []*externalapi.DomainHash{&node.Hash}}, nil
}

// ReorgTo switches the selected chain to the one ending at newTip. The UTXO
// set of the new chain is rebuilt from genesis and swapped in together with
// the tip only once the rebuild succeeded. A failing rebuild means stored
// blocks no longer apply cleanly, and leaves the selected chain untouched.
func (cm *ChainManager) ReorgTo(newTip *model.BlockNode) (*externalapi.SelectedChainChanges, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "ReorgTo")
	defer onEnd()

	path, err := cm.Path(newTip)
	if err != nil {
		return nil, err
	}
	blocks := make([]*externalapi.DomainBlock, len(path))
	for i, node := range path {
		blocks[i] = node.Block
	}
	utxoSet, err := utxo.RebuildFrom(cm.provider, blocks)
	if err != nil {
		return nil, errors.Wrapf(err, "rebuilding the UTXO set of the chain ending at %s", newTip.Hash)
	}

	changes := chainChanges(cm.selectedChain, path)
	oldTip := cm.selectedTip
	cm.utxoSet = utxoSet
	cm.selectedTip = newTip
	cm.selectedChain = path
	log.Infof("Reorganized selected chain from %s (height %d) to %s (height %d): %d blocks removed, %d added",
		oldTip.Hash, oldTip.Height, newTip.Hash, newTip.Height, len(changes.Removed), len(changes.Added))
	return changes, nil
}

// chainChanges returns the blocks leaving and entering the selected chain
// when switching from oldChain to newChain. Removed blocks are listed tip
// first, added blocks genesis first.
func chainChanges(oldChain, newChain []*model.BlockNode) *externalapi.SelectedChainChanges {
	forkIndex := 0
	for forkIndex < len(oldChain) && forkIndex < len(newChain) &&
		oldChain[forkIndex].Hash.Equal(&newChain[forkIndex].Hash) {
		forkIndex++
	}

	changes := &externalapi.SelectedChainChanges{}
	for i := len(oldChain) - 1; i >= forkIndex; i-- {
		changes.Removed = append(changes.Removed, &oldChain[i].Hash)
	}
	for i := forkIndex; i < len(newChain); i++ {
		changes.Added = append(changes.Added, &newChain[i].Hash)
	}
	return changes
}
