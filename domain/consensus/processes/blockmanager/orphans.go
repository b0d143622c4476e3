package blockmanager

import (
	"github.com/davecgh/go-spew/spew"
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/ruleerrors"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
)

// IsKnownOrphan returns whether the passed hash is currently a known orphan.
// Keep in mind that only a limited number of orphans are held onto for a
// limited amount of time, so this function must not be used as an absolute
// way to test if a block is an orphan block. The lookup does not affect
// which orphan is evicted next.
func (bm *BlockManager) IsKnownOrphan(blockHash *externalapi.DomainHash) bool {
	return bm.orphans.Has(*blockHash)
}

// OrphanCount returns the number of blocks in the orphan pool.
func (bm *BlockManager) OrphanCount() int {
	bm.orphans.DeleteExpired()
	return bm.orphans.Len()
}

// MissingAncestors returns the hashes that must be fetched for the orphan
// blockHash to be connected: the missing parent at the root of its orphan
// chain. It returns nil if blockHash is not an orphan.
func (bm *BlockManager) MissingAncestors(blockHash *externalapi.DomainHash) []*externalapi.DomainHash {
	// Items, unlike Get, leaves the eviction order alone.
	orphans := bm.orphans.Items()
	if _, ok := orphans[*blockHash]; !ok {
		return nil
	}
	current := *blockHash
	for {
		item, ok := orphans[current]
		if !ok {
			break
		}
		current = item.Value().Header.PreviousBlockHash
	}
	return []*externalapi.DomainHash{&current}
}

// addOrphanBlock adds the passed block to the orphan pool. When the pool is
// full the orphan that was added first makes room for it.
func (bm *BlockManager) addOrphanBlock(blockHash *externalapi.DomainHash, block *externalapi.DomainBlock) {
	bm.pruneOrphanIndex()
	bm.orphans.Set(*blockHash, block, ttlcache.DefaultTTL)
	parentHash := block.Header.PreviousBlockHash
	bm.prevOrphans[parentHash] = append(bm.prevOrphans[parentHash], *blockHash)
	log.Tracef("Orphan block %s: %s", blockHash, logger.NewLogClosure(func() string {
		return spew.Sdump(block)
	}))
}

// pruneOrphanIndex drops the index entries of orphans that expired or were
// evicted. It only does so once the index has grown well past the pool.
func (bm *BlockManager) pruneOrphanIndex() {
	indexed := 0
	for _, children := range bm.prevOrphans {
		indexed += len(children)
	}
	if uint64(indexed) <= 2*bm.cfg.MaxOrphanBlocks {
		return
	}
	for parentHash, children := range bm.prevOrphans {
		kept := children[:0]
		for _, child := range children {
			if bm.orphans.Has(child) {
				kept = append(kept, child)
			}
		}
		if len(kept) == 0 {
			delete(bm.prevOrphans, parentHash)
			continue
		}
		bm.prevOrphans[parentHash] = kept
	}
}

type orphanBlock struct {
	hash  externalapi.DomainHash
	block *externalapi.DomainBlock
}

// takeOrphanChildren removes and returns the orphans waiting on parentHash,
// in the order they arrived.
func (bm *BlockManager) takeOrphanChildren(parentHash *externalapi.DomainHash) []orphanBlock {
	childHashes := bm.prevOrphans[*parentHash]
	delete(bm.prevOrphans, *parentHash)

	children := make([]orphanBlock, 0, len(childHashes))
	for _, childHash := range childHashes {
		item := bm.orphans.Get(childHash)
		if item == nil {
			continue
		}
		bm.orphans.Delete(childHash)
		children = append(children, orphanBlock{hash: childHash, block: item.Value()})
	}
	return children
}

// processOrphans connects, breadth first, every orphan that descends from
// the just stored blockHash. An orphan failing validation is rejected along
// with its own orphan descendants, without affecting its siblings.
func (bm *BlockManager) processOrphans(blockHash *externalapi.DomainHash) (
	unorphaned []*model.BlockNode, rejectedOrphans []*externalapi.RejectedBlock, err error) {

	processHashes := []externalapi.DomainHash{*blockHash}
	for len(processHashes) > 0 {
		processHash := processHashes[0]
		processHashes = processHashes[1:]

		for _, orphan := range bm.takeOrphanChildren(&processHash) {
			orphanHash := orphan.hash
			node, err := bm.connect(&orphanHash, orphan.block)
			if err != nil {
				if !ruleerrors.IsRuleError(err) {
					return nil, nil, err
				}
				log.Warnf("Verification failed for orphan block %s: %s", orphanHash, err)
				rejectedOrphans = append(rejectedOrphans, &externalapi.RejectedBlock{Hash: &orphanHash, Reason: err})
				rejectedOrphans = append(rejectedOrphans, bm.rejectOrphanDescendants(&orphanHash)...)
				continue
			}
			log.Infof("Unorphaned block %s", orphanHash)
			unorphaned = append(unorphaned, node)
			processHashes = append(processHashes, orphanHash)
		}
	}
	return unorphaned, rejectedOrphans, nil
}

func (bm *BlockManager) rejectOrphanDescendants(blockHash *externalapi.DomainHash) []*externalapi.RejectedBlock {
	var rejectedOrphans []*externalapi.RejectedBlock
	processHashes := []externalapi.DomainHash{*blockHash}
	for len(processHashes) > 0 {
		processHash := processHashes[0]
		processHashes = processHashes[1:]

		for _, orphan := range bm.takeOrphanChildren(&processHash) {
			orphanHash := orphan.hash
			reason := errors.Wrapf(ruleerrors.ErrInvalidAncestorBlock, "ancestor %s was rejected", blockHash)
			rejectedOrphans = append(rejectedOrphans, &externalapi.RejectedBlock{Hash: &orphanHash, Reason: reason})
			processHashes = append(processHashes, orphanHash)
		}
	}
	return rejectedOrphans
}
