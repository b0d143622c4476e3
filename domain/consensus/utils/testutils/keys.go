package testutils

import (
	"testing"

	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/cryptoprovider"
)

// Wallet is a deterministic key pair together with the public key hash it
// spends for.
type Wallet struct {
	*cryptoprovider.KeyPair
	Owner externalapi.PublicKeyHash
}

// NewWallet returns the wallet whose private key is seed repeated 32 times.
// seed must not be zero.
func NewWallet(t testing.TB, provider model.CryptoProvider, seed byte) *Wallet {
	t.Helper()
	privateKey := make([]byte, cryptoprovider.PrivateKeySize)
	for i := range privateKey {
		privateKey[i] = seed
	}
	keyPair, err := cryptoprovider.KeyPairFromPrivateKey(privateKey)
	if err != nil {
		t.Fatalf("NewWallet: KeyPairFromPrivateKey: %+v", err)
	}
	owner, err := provider.PublicKeyHash(keyPair.PublicKey)
	if err != nil {
		t.Fatalf("NewWallet: PublicKeyHash: %+v", err)
	}
	return &Wallet{KeyPair: keyPair, Owner: owner}
}
