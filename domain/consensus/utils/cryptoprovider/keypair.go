package cryptoprovider

import (
	"github.com/btcsuite/btcd/btcec"
	"github.com/pkg/errors"
)

// KeyPair is a secp256k1 private key together with its compressed public
// key.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
}

// GenerateKeyPair creates a new random key pair.
func GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &KeyPair{
		PrivateKey: privateKey.Serialize(),
		PublicKey:  privateKey.PubKey().SerializeCompressed(),
	}, nil
}

// KeyPairFromPrivateKey rebuilds the key pair of a serialized private key.
func KeyPairFromPrivateKey(privateKey []byte) (*KeyPair, error) {
	if len(privateKey) != PrivateKeySize {
		return nil, errors.Errorf("private key must be %d bytes long, got %d", PrivateKeySize, len(privateKey))
	}
	key, publicKey := btcec.PrivKeyFromBytes(btcec.S256(), privateKey)
	return &KeyPair{
		PrivateKey: key.Serialize(),
		PublicKey:  publicKey.SerializeCompressed(),
	}, nil
}
