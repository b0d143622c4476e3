package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/cryptoprovider"
)

func main() {
	cfg, err := parseConfig()
	if err != nil {
		os.Exit(1)
	}

	keyPair, err := getKeyPair(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get the key pair: %+v\n", err)
		os.Exit(1)
	}

	address, err := cryptoprovider.New().DeriveAddress(keyPair.PublicKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to derive the address: %+v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Private key: %x\n", keyPair.PrivateKey)
	fmt.Printf("Public key (use with --miningaddr): %x\n", keyPair.PublicKey)
	fmt.Printf("Address: %s\n", address)
}

func getKeyPair(cfg *configFlags) (*cryptoprovider.KeyPair, error) {
	if cfg.PrivateKey == "" {
		return cryptoprovider.GenerateKeyPair()
	}
	privateKey, err := hex.DecodeString(cfg.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "the private key is not hex encoded")
	}
	return cryptoprovider.KeyPairFromPrivateKey(privateKey)
}
