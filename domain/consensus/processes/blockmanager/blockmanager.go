// Package blockmanager stores every accepted block as a node of the block
// tree, and holds blocks whose parent is not known yet until the parent
// arrives.
package blockmanager

import (
	"math/big"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/datastructures/blockstore"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/ruleerrors"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/pow"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
)

const (
	// DefaultMaxOrphanBlocks is the maximum number of orphan blocks that
	// can be queued by default.
	DefaultMaxOrphanBlocks = 100

	// DefaultOrphanTTL is how long an orphan block is kept by default.
	DefaultOrphanTTL = time.Hour
)

// BlockValidator validates blocks on behalf of the BlockManager.
type BlockValidator interface {
	// ValidateBlockInIsolation runs the checks that need nothing but the
	// block. Blocks failing them are never stored nor kept as orphans.
	ValidateBlockInIsolation(block *externalapi.DomainBlock) error

	// ValidateBlockInContext validates block as a child of parent, which
	// is nil for the genesis block.
	ValidateBlockInContext(blockHash *externalapi.DomainHash, block *externalapi.DomainBlock,
		parent *model.BlockNode) error
}

// Config holds the orphan pool limits.
type Config struct {
	MaxOrphanBlocks uint64
	OrphanTTL       time.Duration
}

// DefaultConfig returns the default orphan pool limits.
func DefaultConfig() *Config {
	return &Config{
		MaxOrphanBlocks: DefaultMaxOrphanBlocks,
		OrphanTTL:       DefaultOrphanTTL,
	}
}

// BlockManager is the hash-keyed arena of block nodes. Nodes refer to their
// parents by hash and are never removed.
//
// BlockManager is not safe for concurrent use.
type BlockManager struct {
	provider    model.CryptoProvider
	genesisHash externalapi.DomainHash
	validator   BlockValidator
	blockStore  *blockstore.BlockStore
	cfg         *Config

	nodes       map[externalapi.DomainHash]*model.BlockNode
	orphans     *ttlcache.Cache[externalapi.DomainHash, *externalapi.DomainBlock]
	prevOrphans map[externalapi.DomainHash][]externalapi.DomainHash
}

// New instantiates a new BlockManager. genesisHash is the only block
// allowed to have no parent.
func New(provider model.CryptoProvider, genesisHash *externalapi.DomainHash, validator BlockValidator,
	blockStore *blockstore.BlockStore, cfg *Config) *BlockManager {

	return &BlockManager{
		provider:    provider,
		genesisHash: *genesisHash,
		validator:   validator,
		blockStore:  blockStore,
		cfg:         cfg,
		nodes:       make(map[externalapi.DomainHash]*model.BlockNode),
		orphans: ttlcache.New[externalapi.DomainHash, *externalapi.DomainBlock](
			ttlcache.WithTTL[externalapi.DomainHash, *externalapi.DomainBlock](cfg.OrphanTTL),
			ttlcache.WithCapacity[externalapi.DomainHash, *externalapi.DomainBlock](cfg.MaxOrphanBlocks),
			ttlcache.WithDisableTouchOnHit[externalapi.DomainHash, *externalapi.DomainBlock](),
		),
		prevOrphans: make(map[externalapi.DomainHash][]externalapi.DomainHash),
	}
}

// Accept processes block: a block whose parent is stored is validated in
// context and stored, after which every orphan waiting on it, and on those
// in turn, is connected too. A block whose parent is unknown is kept as an
// orphan. The returned nodes are those stored by this call, in the order
// they were stored.
//
// Validation failures are reported in the result. An error is returned only
// when something other than the block is at fault; the BlockManager must
// not be used after that.
func (bm *BlockManager) Accept(block *externalapi.DomainBlock) (*externalapi.BlockInsertionResult, []*model.BlockNode, error) {
	onEnd := logger.LogAndMeasureExecutionTime(log, "Accept")
	defer onEnd()

	blockHash := consensushashing.BlockHash(bm.provider, block)
	result := &externalapi.BlockInsertionResult{BlockHash: blockHash}
	bm.orphans.DeleteExpired()

	if bm.HasNode(blockHash) || bm.IsKnownOrphan(blockHash) {
		return rejected(result, errors.Wrapf(ruleerrors.ErrDuplicateBlock, "already have block %s", blockHash))
	}
	isGenesis := block.Header.PreviousBlockHash.IsZero()
	if isGenesis && !blockHash.Equal(&bm.genesisHash) {
		return rejected(result, errors.Wrapf(ruleerrors.ErrUnexpectedGenesis,
			"block %s has no parent but is not the genesis block %s", blockHash, bm.genesisHash))
	}

	err := bm.validator.ValidateBlockInIsolation(block)
	if err != nil {
		if !ruleerrors.IsRuleError(err) {
			return nil, nil, err
		}
		return rejected(result, err)
	}

	if !isGenesis && !bm.HasNode(&block.Header.PreviousBlockHash) {
		bm.addOrphanBlock(blockHash, block)
		result.Status = externalapi.StatusOrphaned
		log.Infof("Adding orphan block %s with parent %s", blockHash, block.Header.PreviousBlockHash)
		return result, nil, nil
	}

	node, err := bm.connect(blockHash, block)
	if err != nil {
		if !ruleerrors.IsRuleError(err) {
			return nil, nil, err
		}
		return rejected(result, err)
	}
	addedNodes := []*model.BlockNode{node}

	unorphaned, rejectedOrphans, err := bm.processOrphans(blockHash)
	if err != nil {
		return nil, nil, err
	}
	for _, unorphanedNode := range unorphaned {
		result.UnorphanedBlocks = append(result.UnorphanedBlocks, &unorphanedNode.Hash)
	}
	result.RejectedOrphans = rejectedOrphans
	addedNodes = append(addedNodes, unorphaned...)

	result.Status = externalapi.StatusAccepted
	log.Debugf("Accepted block %s at height %d", blockHash, node.Height)
	return result, addedNodes, nil
}

func rejected(result *externalapi.BlockInsertionResult, reason error) (*externalapi.BlockInsertionResult, []*model.BlockNode, error) {
	result.Status = externalapi.StatusRejected
	result.RejectReason = reason
	log.Infof("Rejected block %s: %s", result.BlockHash, reason)
	return result, nil, nil
}

func (bm *BlockManager) connect(blockHash *externalapi.DomainHash, block *externalapi.DomainBlock) (*model.BlockNode, error) {
	var parent *model.BlockNode
	if !block.Header.PreviousBlockHash.IsZero() {
		parent = bm.nodes[block.Header.PreviousBlockHash]
	}
	err := bm.validator.ValidateBlockInContext(blockHash, block, parent)
	if err != nil {
		return nil, err
	}
	return bm.Store(block)
}

// Store inserts block into the arena and the block archive without
// validating it, and returns its node. Its parent must already be stored,
// unless block is the genesis block. Storing a stored block returns the
// existing node.
func (bm *BlockManager) Store(block *externalapi.DomainBlock) (*model.BlockNode, error) {
	blockHash := consensushashing.BlockHash(bm.provider, block)
	if node, ok := bm.nodes[*blockHash]; ok {
		return node, nil
	}

	height := uint64(0)
	cumulativeWork := new(big.Int)
	if !block.Header.PreviousBlockHash.IsZero() {
		parent, ok := bm.nodes[block.Header.PreviousBlockHash]
		if !ok {
			return nil, errors.Errorf("cannot store block %s: parent %s is not stored",
				blockHash, block.Header.PreviousBlockHash)
		}
		height = parent.Height + 1
		cumulativeWork.Set(parent.CumulativeWork)
	}
	cumulativeWork.Add(cumulativeWork, pow.CalcWork(block.Header.Bits))

	err := bm.blockStore.Put(blockHash, block)
	if err != nil {
		return nil, err
	}
	node := &model.BlockNode{
		Hash:           *blockHash,
		ParentHash:     block.Header.PreviousBlockHash,
		Block:          block,
		Height:         height,
		CumulativeWork: cumulativeWork,
	}
	bm.nodes[*blockHash] = node
	return node, nil
}

// Node returns the stored node of blockHash.
func (bm *BlockManager) Node(blockHash *externalapi.DomainHash) (*model.BlockNode, bool) {
	node, ok := bm.nodes[*blockHash]
	return node, ok
}

// HasNode returns whether blockHash is stored.
func (bm *BlockManager) HasNode(blockHash *externalapi.DomainHash) bool {
	_, ok := bm.nodes[*blockHash]
	return ok
}

// NodeCount returns the number of stored blocks.
func (bm *BlockManager) NodeCount() int {
	return len(bm.nodes)
}

// GenesisHash returns the hash of the genesis block.
func (bm *BlockManager) GenesisHash() *externalapi.DomainHash {
	genesisHash := bm.genesisHash
	return &genesisHash
}
