// Package multiset wraps the MuHash multiplicative multiset hash: an order
// independent commitment to a set of byte strings that supports incremental
// additions and removals.
package multiset

import (
	"github.com/kaspanet/go-muhash"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
)

// Multiset is a commitment to a multiset of byte strings.
type Multiset struct {
	ms *muhash.MuHash
}

// New returns the commitment to the empty multiset.
func New() *Multiset {
	return &Multiset{ms: muhash.NewMuHash()}
}

// Add adds data to the multiset.
func (m *Multiset) Add(data []byte) {
	m.ms.Add(data)
}

// Remove removes data from the multiset. Removing data that was never added
// leaves a commitment that no sequence of additions produces.
func (m *Multiset) Remove(data []byte) {
	m.ms.Remove(data)
}

func (m *Multiset) Hash() *externalapi.DomainHash {
	finalizedHash := m.ms.Finalize()
	hash := externalapi.DomainHash(finalizedHash)
	return &hash
}

func (m *Multiset) Clone() *Multiset {
	msClone := *m.ms
	return &Multiset{ms: &msClone}
}
