// Package cryptoprovider is the default model.CryptoProvider: double SHA-256,
// ECDSA over secp256k1, and Base58Check pay-to-public-key-hash addresses.
package cryptoprovider

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"golang.org/x/crypto/ripemd160"
)

// AddressVersion is the version byte prefixed to every address.
const AddressVersion = 0x00

// PrivateKeySize is the length of a serialized private key.
const PrivateKeySize = 32

type cryptoProvider struct{}

// New returns the default CryptoProvider.
func New() model.CryptoProvider {
	return cryptoProvider{}
}

// Hash returns SHA-256 applied twice.
func (cryptoProvider) Hash(data []byte) *externalapi.DomainHash {
	first := sha256.Sum256(data)
	second := externalapi.DomainHash(sha256.Sum256(first[:]))
	return &second
}

// Sign signs the double hash of message and returns the DER encoded
// signature.
func (p cryptoProvider) Sign(privateKey []byte, message []byte) ([]byte, error) {
	if len(privateKey) != PrivateKeySize {
		return nil, errors.Errorf("private key must be %d bytes long, got %d", PrivateKeySize, len(privateKey))
	}
	key, _ := btcec.PrivKeyFromBytes(btcec.S256(), privateKey)
	digest := p.Hash(message)
	signature, err := key.Sign(digest[:])
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return signature.Serialize(), nil
}

// Verify returns whether signature is a valid DER signature by publicKey
// over the double hash of message. Malformed keys or signatures do not
// verify.
func (p cryptoProvider) Verify(publicKey []byte, message []byte, signature []byte) bool {
	key, err := btcec.ParsePubKey(publicKey, btcec.S256())
	if err != nil {
		return false
	}
	parsedSignature, err := btcec.ParseDERSignature(signature, btcec.S256())
	if err != nil {
		return false
	}
	digest := p.Hash(message)
	return parsedSignature.Verify(digest[:], key)
}

// MerkleRoot pairs adjacent hashes level by level. An odd hash at the end of
// a level is carried up unchanged rather than paired with itself.
func (p cryptoProvider) MerkleRoot(ids []*externalapi.DomainHash) *externalapi.DomainHash {
	if len(ids) == 0 {
		var zero externalapi.DomainHash
		return &zero
	}

	level := make([]*externalapi.DomainHash, len(ids))
	copy(level, ids)
	for len(level) > 1 {
		next := make([]*externalapi.DomainHash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			var concatenated [externalapi.DomainHashSize * 2]byte
			copy(concatenated[:externalapi.DomainHashSize], level[i][:])
			copy(concatenated[externalapi.DomainHashSize:], level[i+1][:])
			next = append(next, p.Hash(concatenated[:]))
		}
		level = next
	}

	root := *level[0]
	return &root
}

// PublicKeyHash returns ripemd160(sha256(uncompressed public key)). Both the
// compressed and uncompressed encodings of a key hash to the same owner.
func (cryptoProvider) PublicKeyHash(publicKey []byte) (externalapi.PublicKeyHash, error) {
	key, err := btcec.ParsePubKey(publicKey, btcec.S256())
	if err != nil {
		return externalapi.PublicKeyHash{}, errors.Wrap(err, "malformed public key")
	}
	return hash160(key.SerializeUncompressed()), nil
}

// DeriveAddress returns the Base58Check address of publicKey.
func (p cryptoProvider) DeriveAddress(publicKey []byte) (string, error) {
	publicKeyHash, err := p.PublicKeyHash(publicKey)
	if err != nil {
		return "", err
	}
	return EncodeAddress(publicKeyHash), nil
}

// EncodeAddress returns the Base58Check address paying to publicKeyHash.
func EncodeAddress(publicKeyHash externalapi.PublicKeyHash) string {
	return base58.CheckEncode(publicKeyHash[:], AddressVersion)
}

// DecodeAddress returns the public key hash an address pays to.
func DecodeAddress(address string) (externalapi.PublicKeyHash, error) {
	decoded, version, err := base58.CheckDecode(address)
	if err != nil {
		return externalapi.PublicKeyHash{}, errors.Wrapf(err, "malformed address %s", address)
	}
	if version != AddressVersion {
		return externalapi.PublicKeyHash{}, errors.Errorf("address %s has version %d, expected %d",
			address, version, AddressVersion)
	}
	if len(decoded) != externalapi.PublicKeyHashSize {
		return externalapi.PublicKeyHash{}, errors.Errorf("address %s decodes to %d bytes, expected %d",
			address, len(decoded), externalapi.PublicKeyHashSize)
	}
	var publicKeyHash externalapi.PublicKeyHash
	copy(publicKeyHash[:], decoded)
	return publicKeyHash, nil
}

func hash160(data []byte) externalapi.PublicKeyHash {
	sha := sha256.Sum256(data)
	hasher := ripemd160.New()
	_, _ = hasher.Write(sha[:])
	var publicKeyHash externalapi.PublicKeyHash
	copy(publicKeyHash[:], hasher.Sum(nil))
	return publicKeyHash
}
