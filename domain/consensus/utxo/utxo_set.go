// Package utxo holds the set of unspent transaction outputs produced by a
// chain of blocks, and the diff views used to validate transactions against
// it without modifying it.
package utxo

import (
	"bytes"
	"encoding/binary"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/multiset"
)

const initialCapacity = 1024

// UTXOSet maps every unspent outpoint of a chain to its output. It carries
// a multiset commitment over its entries so that two sets holding the same
// entries can be compared without walking them.
//
// A UTXOSet is not safe for concurrent mutation; callers serialize writers.
type UTXOSet struct {
	entries  *swiss.Map[externalapi.DomainOutpoint, *externalapi.DomainTransactionOutput]
	multiset *multiset.Multiset
}

// New returns an empty UTXOSet.
func New() *UTXOSet {
	return &UTXOSet{
		entries:  swiss.NewMap[externalapi.DomainOutpoint, *externalapi.DomainTransactionOutput](initialCapacity),
		multiset: multiset.New(),
	}
}

// Get returns the output at outpoint, if it is unspent.
func (s *UTXOSet) Get(outpoint *externalapi.DomainOutpoint) (*externalapi.DomainTransactionOutput, bool) {
	return s.entries.Get(*outpoint)
}

// Contains returns whether outpoint is unspent.
func (s *UTXOSet) Contains(outpoint *externalapi.DomainOutpoint) bool {
	return s.entries.Has(*outpoint)
}

// Len returns the number of unspent outputs.
func (s *UTXOSet) Len() int {
	return s.entries.Count()
}

// Commitment returns the multiset hash of the set's entries. Sets holding
// the same entries have the same commitment regardless of the order the
// entries were added and removed in.
func (s *UTXOSet) Commitment() *externalapi.DomainHash {
	return s.multiset.Hash()
}

// ForEach calls f for every unspent output, in no particular order, until f
// returns an error.
func (s *UTXOSet) ForEach(f func(outpoint externalapi.DomainOutpoint, output *externalapi.DomainTransactionOutput) error) error {
	var err error
	s.entries.Iter(func(outpoint externalapi.DomainOutpoint, output *externalapi.DomainTransactionOutput) (stop bool) {
		err = f(outpoint, output)
		return err != nil
	})
	return err
}

// Balance returns the total value of the unspent outputs owned by owner.
func (s *UTXOSet) Balance(owner externalapi.PublicKeyHash) uint64 {
	balance := uint64(0)
	s.entries.Iter(func(_ externalapi.DomainOutpoint, output *externalapi.DomainTransactionOutput) (stop bool) {
		if output.Owner == owner {
			balance += output.Value
		}
		return false
	})
	return balance
}

// Clone returns an independent copy of the set. Outputs are shared, since
// they are never modified once created.
func (s *UTXOSet) Clone() *UTXOSet {
	clone := &UTXOSet{
		entries:  swiss.NewMap[externalapi.DomainOutpoint, *externalapi.DomainTransactionOutput](uint32(s.entries.Count())),
		multiset: s.multiset.Clone(),
	}
	s.entries.Iter(func(outpoint externalapi.DomainOutpoint, output *externalapi.DomainTransactionOutput) (stop bool) {
		clone.entries.Put(outpoint, output)
		return false
	})
	return clone
}

func (s *UTXOSet) add(outpoint externalapi.DomainOutpoint, output *externalapi.DomainTransactionOutput) error {
	if s.entries.Has(outpoint) {
		return errors.Errorf("outpoint %s is already unspent", outpoint)
	}
	s.entries.Put(outpoint, output)
	s.multiset.Add(serializeEntry(outpoint, output))
	return nil
}

func (s *UTXOSet) remove(outpoint externalapi.DomainOutpoint) (*externalapi.DomainTransactionOutput, error) {
	output, ok := s.entries.Get(outpoint)
	if !ok {
		return nil, errors.Errorf("outpoint %s is not unspent", outpoint)
	}
	s.entries.Delete(outpoint)
	s.multiset.Remove(serializeEntry(outpoint, output))
	return output, nil
}

// serializeEntry is the multiset element of an entry:
// txid || index || value || owner, integers little endian.
func serializeEntry(outpoint externalapi.DomainOutpoint, output *externalapi.DomainTransactionOutput) []byte {
	var buf bytes.Buffer
	buf.Grow(externalapi.DomainHashSize + 4 + 8 + externalapi.PublicKeyHashSize)
	buf.Write(outpoint.TransactionID[:])
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], outpoint.Index)
	buf.Write(scratch[:4])
	binary.LittleEndian.PutUint64(scratch[:], output.Value)
	buf.Write(scratch[:])
	buf.Write(output.Owner[:])
	return buf.Bytes()
}
