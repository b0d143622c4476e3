package nodestate

import (
	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utxo"
)

type acceptedBlock struct {
	view     *utxo.DiffView
	snapshot *utxo.UTXOSet
}

// contextValidator validates blocks for the BlockManager against the UTXO
// set of their parent, whichever branch it is on.
type contextValidator struct {
	ns *NodeState
}

func (cv *contextValidator) ValidateBlockInIsolation(block *externalapi.DomainBlock) error {
	return cv.ns.blockValidator.ValidateBlockInIsolation(block)
}

func (cv *contextValidator) ValidateBlockInContext(blockHash *externalapi.DomainHash,
	block *externalapi.DomainBlock, parent *model.BlockNode) error {

	snapshot, err := cv.ns.utxoSnapshot(parent)
	if err != nil {
		return err
	}
	view, err := cv.ns.blockValidator.ValidateBlockInContext(block, parent, snapshot)
	if err != nil {
		return err
	}
	if parent != nil {
		cv.ns.acceptedBlocks[*blockHash] = &acceptedBlock{view: view, snapshot: snapshot}
	}
	return nil
}

// utxoSnapshot returns the UTXO set after parent, which is nil before the
// genesis block. The result must not be modified.
func (ns *NodeState) utxoSnapshot(parent *model.BlockNode) (*utxo.UTXOSet, error) {
	if parent == nil {
		return utxo.New(), nil
	}
	if ns.chainManager.SelectedTip().Hash.Equal(&parent.Hash) {
		return ns.chainManager.UTXOSet(), nil
	}
	if item := ns.snapshots.Get(parent.Hash); item != nil {
		return item.Value(), nil
	}

	var snapshot *utxo.UTXOSet
	if accepted, ok := ns.acceptedBlocks[parent.Hash]; ok {
		snapshot = accepted.snapshot.Clone()
		err := snapshot.ApplyDiff(accepted.view)
		if err != nil {
			return nil, errors.Wrapf(err, "deriving the UTXO set after %s", parent.Hash)
		}
	} else {
		log.Debugf("Rebuilding the UTXO set after %s at height %d", parent.Hash, parent.Height)
		path, err := ns.chainManager.Path(parent)
		if err != nil {
			return nil, err
		}
		blocks := make([]*externalapi.DomainBlock, len(path))
		for i, node := range path {
			blocks[i] = node.Block
		}
		snapshot, err = utxo.RebuildFrom(ns.provider, blocks)
		if err != nil {
			return nil, errors.Wrapf(err, "rebuilding the UTXO set after %s", parent.Hash)
		}
	}
	ns.snapshots.Set(parent.Hash, snapshot, ttlcache.DefaultTTL)
	return snapshot, nil
}
