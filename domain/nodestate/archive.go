package nodestate

import (
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
)

// loadArchive replays the blocks of the block archive, parents before
// children, through the normal acceptance path.
func (ns *NodeState) loadArchive() error {
	children := make(map[externalapi.DomainHash][]*externalapi.DomainBlock)
	archived := 0
	err := ns.blockStore.ForEach(func(blockHash *externalapi.DomainHash, block *externalapi.DomainBlock) error {
		if block.Header.PreviousBlockHash.IsZero() {
			return nil
		}
		parentHash := block.Header.PreviousBlockHash
		children[parentHash] = append(children[parentHash], block)
		archived++
		return nil
	})
	if err != nil {
		return err
	}
	if archived == 0 {
		return nil
	}

	onEnd := logger.LogAndMeasureExecutionTime(log, "loadArchive")
	defer onEnd()

	replayed := 0
	queue := []externalapi.DomainHash{*ns.blockManager.GenesisHash()}
	for len(queue) > 0 {
		parentHash := queue[0]
		queue = queue[1:]
		for _, block := range children[parentHash] {
			result, _, err := ns.processBlock(block)
			if err != nil {
				return err
			}
			if result.Status != externalapi.StatusAccepted {
				log.Warnf("Archived block %s was not accepted: %s", result.BlockHash, result.RejectReason)
				continue
			}
			queue = append(queue, *result.BlockHash)
			replayed++
		}
		delete(children, parentHash)
	}
	if replayed < archived {
		log.Warnf("%d archived blocks could not be connected", archived-replayed)
	}
	tip := ns.chainManager.SelectedTip()
	log.Infof("Loaded %d blocks from the block archive. Selected tip is %s at height %d",
		replayed, tip.Hash, tip.Height)
	return nil
}
