package model

import (
	"math/big"

	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
)

// BlockNode is an accepted block together with its position in the block
// tree. Nodes refer to their parent by hash only and are never modified once
// created.
type BlockNode struct {
	Hash       externalapi.DomainHash
	ParentHash externalapi.DomainHash
	Block      *externalapi.DomainBlock
	Height     uint64

	// CumulativeWork is the sum of work(target) from genesis up to and
	// including this block.
	CumulativeWork *big.Int
}

// IsGenesis returns whether the node is the root of the tree.
func (node *BlockNode) IsGenesis() bool {
	return node.ParentHash.IsZero()
}

// HeavierThan is the fork-choice order: more cumulative work wins and equal
// work is won by the lower block hash.
func (node *BlockNode) HeavierThan(other *BlockNode) bool {
	switch node.CumulativeWork.Cmp(other.CumulativeWork) {
	case 1:
		return true
	case -1:
		return false
	}
	return node.Hash.Less(&other.Hash)
}
