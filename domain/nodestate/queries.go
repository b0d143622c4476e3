package nodestate

import (
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/cryptoprovider"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
)

// Params returns the protocol parameters of the node.
func (ns *NodeState) Params() *ledgerconfig.Params {
	return ns.params
}

// GenesisHash returns the hash of the genesis block.
func (ns *NodeState) GenesisHash() *externalapi.DomainHash {
	return ns.blockManager.GenesisHash()
}

// Height returns the height of the selected tip.
func (ns *NodeState) Height() uint64 {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.chainManager.SelectedTip().Height
}

// TipHash returns the hash of the selected tip.
func (ns *NodeState) TipHash() *externalapi.DomainHash {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	tipHash := ns.chainManager.SelectedTip().Hash
	return &tipHash
}

// SelectedChain returns the hashes of the selected chain, genesis first.
func (ns *NodeState) SelectedChain() []*externalapi.DomainHash {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.chainManager.SelectedChain()
}

// Balance returns the sum of the unspent outputs owned by owner on the
// selected chain.
func (ns *NodeState) Balance(owner externalapi.PublicKeyHash) uint64 {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.chainManager.UTXOSet().Balance(owner)
}

// BalanceByAddress is Balance for the owner encoded by a Base58Check
// address.
func (ns *NodeState) BalanceByAddress(address string) (uint64, error) {
	owner, err := cryptoprovider.DecodeAddress(address)
	if err != nil {
		return 0, err
	}
	return ns.Balance(owner), nil
}

// UTXOCommitment returns the commitment to the UTXO set of the selected
// chain.
func (ns *NodeState) UTXOCommitment() *externalapi.DomainHash {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.chainManager.UTXOSet().Commitment()
}

// UTXO returns the unspent output at outpoint on the selected chain.
func (ns *NodeState) UTXO(outpoint *externalapi.DomainOutpoint) (*externalapi.DomainTransactionOutput, bool) {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.chainManager.UTXOSet().Get(outpoint)
}

// BlockByHash returns the stored block with the given hash.
func (ns *NodeState) BlockByHash(blockHash *externalapi.DomainHash) (*externalapi.DomainBlock, bool) {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	node, ok := ns.blockManager.Node(blockHash)
	if !ok {
		return nil, false
	}
	return node.Block, true
}

// BlockCount returns the number of stored blocks, genesis included.
func (ns *NodeState) BlockCount() int {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.blockManager.NodeCount()
}

// IsInSelectedChain returns whether blockHash is on the selected chain.
func (ns *NodeState) IsInSelectedChain(blockHash *externalapi.DomainHash) bool {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.chainManager.IsInSelectedChain(blockHash)
}

// OrphanCount returns the number of blocks waiting for their parent.
func (ns *NodeState) OrphanCount() int {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.blockManager.OrphanCount()
}

// MissingAncestors returns the blocks that must be fetched to connect the
// orphan blockHash, or nil if it is not an orphan.
func (ns *NodeState) MissingAncestors(blockHash *externalapi.DomainHash) []*externalapi.DomainHash {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.blockManager.MissingAncestors(blockHash)
}

// MempoolSize returns the number of transactions in the mempool.
func (ns *NodeState) MempoolSize() int {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.miningManager.TransactionCount()
}

// MempoolTransactions returns the mempool in admission order.
func (ns *NodeState) MempoolTransactions() []*externalapi.DomainTransaction {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.miningManager.AllTransactions()
}

// MempoolTransaction returns the mempool transaction with the given id.
func (ns *NodeState) MempoolTransaction(id *externalapi.DomainTransactionID) (*externalapi.DomainTransaction, bool) {
	ns.lock.RLock()
	defer ns.lock.RUnlock()
	return ns.miningManager.GetTransaction(id)
}
