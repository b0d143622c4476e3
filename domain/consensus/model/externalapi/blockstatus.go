package externalapi

// BlockStatus is the outcome of submitting a block
type BlockStatus byte

const (
	// StatusAccepted means the block was validated and stored. It may or may
	// not have become the tip.
	StatusAccepted BlockStatus = iota

	// StatusOrphaned means the block's parent is unknown and the block waits
	// in the orphan pool until it arrives.
	StatusOrphaned

	// StatusRejected means the block broke a consensus rule.
	StatusRejected
)

var blockStatusStrings = map[BlockStatus]string{
	StatusAccepted: "Accepted",
	StatusOrphaned: "Orphaned",
	StatusRejected: "Rejected",
}

func (bs BlockStatus) String() string {
	return blockStatusStrings[bs]
}
