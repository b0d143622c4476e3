package model

import "github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"

// CryptoProvider is the set of cryptographic primitives consensus relies on.
// Implementations must be pure and safe for concurrent use.
type CryptoProvider interface {
	// Hash returns the double application of the underlying hash function.
	Hash(data []byte) *externalapi.DomainHash
	Sign(privateKey []byte, message []byte) ([]byte, error)
	Verify(publicKey []byte, message []byte, signature []byte) bool
	MerkleRoot(ids []*externalapi.DomainHash) *externalapi.DomainHash
	// PublicKeyHash returns the owner a public key is able to spend for.
	PublicKeyHash(publicKey []byte) (externalapi.PublicKeyHash, error)
	DeriveAddress(publicKey []byte) (string, error)
}
