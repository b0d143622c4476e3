package consensushashing

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/serialization"
)

// BlockHash returns the given block's hash
func BlockHash(hasher model.CryptoProvider, block *externalapi.DomainBlock) *externalapi.DomainHash {
	return HeaderHash(hasher, block.Header)
}

// HeaderHash returns the given header's hash
func HeaderHash(hasher model.CryptoProvider, header *externalapi.DomainBlockHeader) *externalapi.DomainHash {
	var buf bytes.Buffer
	err := serialization.SerializeHeader(&buf, header)
	if err != nil {
		// It seems like this could only happen if the writer returned an error.
		// and this writer should never return an error (no allocations or possible failures)
		// the only non-writer error path here is unknown types in `WriteElement`
		panic(errors.Wrap(err, "this should never happen. Hash digest should never return an error"))
	}
	return hasher.Hash(buf.Bytes())
}

// MerkleRoot returns the merkle root over the IDs of the given transactions.
func MerkleRoot(provider model.CryptoProvider, txs []*externalapi.DomainTransaction) *externalapi.DomainHash {
	ids := TransactionIDs(provider, txs)
	hashes := make([]*externalapi.DomainHash, len(ids))
	for i, id := range ids {
		hashes[i] = (*externalapi.DomainHash)(id)
	}
	return provider.MerkleRoot(hashes)
}
