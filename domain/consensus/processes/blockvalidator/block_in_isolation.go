package blockvalidator

import (
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/ruleerrors"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/pow"
	"github.com/tinycrypto/ledgerd/domain/consensus/utxo"
)

// ValidateBlockInIsolation validates the parts of a block that need nothing
// but the block itself: transaction count, target, proof of work, merkle
// root, duplicate transactions and coinbase placement.
func (v *BlockValidator) ValidateBlockInIsolation(block *externalapi.DomainBlock) error {
	err := v.checkTransactionCount(block)
	if err != nil {
		return err
	}

	err = v.checkTargetBits(block.Header)
	if err != nil {
		return err
	}

	err = v.checkProofOfWork(block.Header)
	if err != nil {
		return err
	}

	err = v.checkTransactionsStructure(block)
	if err != nil {
		return err
	}

	ids := consensushashing.TransactionIDs(v.provider, block.Transactions)
	err = v.checkMerkleRoot(block.Header, ids)
	if err != nil {
		return err
	}

	err = v.checkBlockDuplicateTransactions(ids)
	if err != nil {
		return err
	}

	err = v.checkFirstBlockTransactionIsCoinbase(block)
	if err != nil {
		return err
	}

	return v.checkBlockContainsOnlyOneCoinbase(block)
}

func (v *BlockValidator) checkTransactionCount(block *externalapi.DomainBlock) error {
	if len(block.Transactions) == 0 {
		return errors.Wrapf(ruleerrors.ErrNoTransactions, "block does not contain "+
			"any transactions")
	}
	if len(block.Transactions) > v.params.BlockSizeLimit {
		return errors.Wrapf(ruleerrors.ErrTooManyTransactions, "block contains "+
			"%d transactions, which is more than the limit of %d",
			len(block.Transactions), v.params.BlockSizeLimit)
	}
	return nil
}

func (v *BlockValidator) checkTargetBits(header *externalapi.DomainBlockHeader) error {
	expectedBits := v.params.PowBits
	if header.PreviousBlockHash.IsZero() {
		expectedBits = v.params.GenesisBits
	}
	if header.Bits != expectedBits {
		return errors.Wrapf(ruleerrors.ErrUnexpectedDifficulty, "block bits %08x "+
			"are not the expected %08x", header.Bits, expectedBits)
	}
	return nil
}

func (v *BlockValidator) checkProofOfWork(header *externalapi.DomainBlockHeader) error {
	hash := consensushashing.HeaderHash(v.provider, header)
	if !pow.CheckProofOfWork(hash, header.Bits) {
		return errors.Wrapf(ruleerrors.ErrProofOfWorkInvalid, "block hash %s is "+
			"higher than the target of bits %08x", hash, header.Bits)
	}
	return nil
}

func (v *BlockValidator) checkTransactionsStructure(block *externalapi.DomainBlock) error {
	for i, tx := range block.Transactions {
		_, err := utxo.CheckTransactionStructure(tx)
		if err != nil {
			return errors.Wrapf(err, "transaction %d is malformed", i)
		}
	}
	return nil
}

func (v *BlockValidator) checkMerkleRoot(header *externalapi.DomainBlockHeader,
	ids []*externalapi.DomainTransactionID) error {

	hashes := make([]*externalapi.DomainHash, len(ids))
	for i, id := range ids {
		hashes[i] = (*externalapi.DomainHash)(id)
	}
	calculated := v.provider.MerkleRoot(hashes)
	if !header.MerkleRoot.Equal(calculated) {
		return errors.Wrapf(ruleerrors.ErrMerkleRootMismatch, "block merkle root is invalid - block "+
			"header indicates %s, but calculated value is %s",
			header.MerkleRoot, calculated)
	}
	return nil
}

func (v *BlockValidator) checkBlockDuplicateTransactions(ids []*externalapi.DomainTransactionID) error {
	existingTxIDs := make(map[externalapi.DomainTransactionID]struct{}, len(ids))
	for _, id := range ids {
		if _, exists := existingTxIDs[*id]; exists {
			return errors.Wrapf(ruleerrors.ErrDuplicateTransaction, "block contains duplicate "+
				"transaction %s", id)
		}
		existingTxIDs[*id] = struct{}{}
	}
	return nil
}

func (v *BlockValidator) checkFirstBlockTransactionIsCoinbase(block *externalapi.DomainBlock) error {
	if !block.Transactions[0].IsCoinbase() {
		return errors.Wrapf(ruleerrors.ErrFirstTxNotCoinbase, "first transaction in "+
			"block is not a coinbase")
	}
	return nil
}

func (v *BlockValidator) checkBlockContainsOnlyOneCoinbase(block *externalapi.DomainBlock) error {
	for i, tx := range block.Transactions[1:] {
		if tx.IsCoinbase() {
			return errors.Wrapf(ruleerrors.ErrMultipleCoinbases, "block contains second coinbase at "+
				"index %d", i+1)
		}
	}
	return nil
}
