package externalapi

// DomainBlockHeader represents the header part of a block
type DomainBlockHeader struct {
	Version            uint16
	PreviousBlockHash  DomainHash
	MerkleRoot         DomainHash
	TimeInMilliseconds int64
	Bits               uint32
	Nonce              uint64
}

// Clone returns a copy of the header.
func (header *DomainBlockHeader) Clone() *DomainBlockHeader {
	clone := *header
	return &clone
}

// DomainBlock represents a block. The first transaction is the coinbase.
type DomainBlock struct {
	Header       *DomainBlockHeader
	Transactions []*DomainTransaction
}

// Clone returns a deep copy of the block.
func (block *DomainBlock) Clone() *DomainBlock {
	transactions := make([]*DomainTransaction, len(block.Transactions))
	for i, tx := range block.Transactions {
		transactions[i] = tx.Clone()
	}
	return &DomainBlock{
		Header:       block.Header.Clone(),
		Transactions: transactions,
	}
}
