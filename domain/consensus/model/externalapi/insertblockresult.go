package externalapi

// BlockInsertionResult is returned from submitting a block
type BlockInsertionResult struct {
	Status    BlockStatus
	BlockHash *DomainHash

	// RejectReason is set only when Status is StatusRejected.
	RejectReason error

	// UnorphanedBlocks are orphans that were connected as a consequence of
	// this block, in the order they were accepted.
	UnorphanedBlocks []*DomainHash

	// RejectedOrphans are orphans waiting on this block that failed
	// validation once their parent arrived. They are dropped.
	RejectedOrphans []*RejectedBlock

	// ChainChanges is non-nil if the selected chain moved.
	ChainChanges *SelectedChainChanges
}

// RejectedBlock pairs a block hash with the rule it broke
type RejectedBlock struct {
	Hash   *DomainHash
	Reason error
}

// SelectedChainChanges is the set of changes made to the selected chain
type SelectedChainChanges struct {
	Added   []*DomainHash
	Removed []*DomainHash
}
