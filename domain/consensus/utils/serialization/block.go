package serialization

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
)

// maxBlockTransactions bounds the transaction count read back from storage.
const maxBlockTransactions = 1 << 20

// SerializeHeader writes header to w. The encoding is the pre-image of the
// block hash.
func SerializeHeader(w io.Writer, header *externalapi.DomainBlockHeader) error {
	return WriteElements(w, header.Version, header.PreviousBlockHash, header.MerkleRoot,
		header.TimeInMilliseconds, header.Bits, header.Nonce)
}

// DeserializeHeader reads a header from r.
func DeserializeHeader(r io.Reader) (*externalapi.DomainBlockHeader, error) {
	header := &externalapi.DomainBlockHeader{}
	err := ReadElements(r, &header.Version, &header.PreviousBlockHash, &header.MerkleRoot,
		&header.TimeInMilliseconds, &header.Bits, &header.Nonce)
	if err != nil {
		return nil, err
	}
	return header, nil
}

// SerializeBlock writes the header followed by every transaction in full.
func SerializeBlock(w io.Writer, block *externalapi.DomainBlock) error {
	err := SerializeHeader(w, block.Header)
	if err != nil {
		return err
	}
	err = WriteElement(w, uint64(len(block.Transactions)))
	if err != nil {
		return err
	}
	for _, tx := range block.Transactions {
		err := SerializeTransaction(w, tx, TxEncodingFull)
		if err != nil {
			return err
		}
	}
	return nil
}

// DeserializeBlock reads a block written by SerializeBlock.
func DeserializeBlock(r io.Reader) (*externalapi.DomainBlock, error) {
	header, err := DeserializeHeader(r)
	if err != nil {
		return nil, err
	}
	var txCount uint64
	err = ReadElement(r, &txCount)
	if err != nil {
		return nil, err
	}
	if txCount > maxBlockTransactions {
		return nil, errors.Wrapf(errMalformed, "too many transactions: %d", txCount)
	}
	transactions := make([]*externalapi.DomainTransaction, txCount)
	for i := range transactions {
		transactions[i], err = DeserializeTransaction(r)
		if err != nil {
			return nil, err
		}
	}
	return &externalapi.DomainBlock{Header: header, Transactions: transactions}, nil
}

// BlockToBytes is a convenience wrapper around SerializeBlock.
func BlockToBytes(block *externalapi.DomainBlock) ([]byte, error) {
	var buf bytes.Buffer
	err := SerializeBlock(&buf, block)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BytesToBlock is a convenience wrapper around DeserializeBlock. Trailing
// bytes are an error.
func BytesToBlock(data []byte) (*externalapi.DomainBlock, error) {
	reader := bytes.NewReader(data)
	block, err := DeserializeBlock(reader)
	if err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.Wrapf(errMalformed, "%d trailing bytes after block", reader.Len())
	}
	return block, nil
}
