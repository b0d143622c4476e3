package externalapi

import (
	"bytes"
	"encoding/hex"

	"github.com/pkg/errors"
)

// DomainHashSize of array used to store hashes.
const DomainHashSize = 32

// DomainHash is the domain representation of a Hash
type DomainHash [DomainHashSize]byte

// ZeroHash is the hash of nothing. It is the previous block hash of the
// genesis block.
var ZeroHash DomainHash

// NewDomainHashFromByteSlice returns a DomainHash holding a copy of
// hashBytes, which must be exactly DomainHashSize long.
func NewDomainHashFromByteSlice(hashBytes []byte) (*DomainHash, error) {
	if len(hashBytes) != DomainHashSize {
		return nil, errors.Errorf("invalid hash size. Want: %d, got: %d",
			DomainHashSize, len(hashBytes))
	}
	var hash DomainHash
	copy(hash[:], hashBytes)
	return &hash, nil
}

// NewDomainHashFromString parses a hex encoded hash.
func NewDomainHashFromString(hashString string) (*DomainHash, error) {
	expectedLength := DomainHashSize * 2
	if len(hashString) != expectedLength {
		return nil, errors.Errorf("hash string length is %d, while it should be be %d",
			len(hashString), expectedLength)
	}

	hashBytes, err := hex.DecodeString(hashString)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return NewDomainHashFromByteSlice(hashBytes)
}

// String returns the Hash as the hexadecimal string of the hash.
func (hash DomainHash) String() string {
	return hex.EncodeToString(hash[:])
}

// Equal returns whether hash equals to other
func (hash *DomainHash) Equal(other *DomainHash) bool {
	if hash == nil || other == nil {
		return hash == other
	}
	return *hash == *other
}

// Less returns true if hash sorts before other when both are read as
// big-endian numbers.
func (hash *DomainHash) Less(other *DomainHash) bool {
	return bytes.Compare(hash[:], other[:]) < 0
}

// IsZero returns whether the hash is all zeros.
func (hash *DomainHash) IsZero() bool {
	return *hash == ZeroHash
}

// HashesEqual returns whether the given hash slices are equal.
func HashesEqual(a, b []*DomainHash) bool {
	if len(a) != len(b) {
		return false
	}
	for i, hash := range a {
		if !hash.Equal(b[i]) {
			return false
		}
	}
	return true
}
