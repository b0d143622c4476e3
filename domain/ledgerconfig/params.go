package ledgerconfig

import (
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
)

const (
	genesisReward            = 50
	subsidyReductionInterval = 210_000
	blockSizeLimit           = 1000
	blockVersion             = 1

	// genesisBits encodes a target just below 2^256, so the genesis nonce
	// search practically always stops at nonce 0.
	genesisBits = 0x2100ffff
)

// Params defines a network by its consensus parameters. These are fixed at
// genesis: two nodes with different Params never agree on a chain.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// GenesisReward is the subsidy paid by the coinbase of the genesis
	// block, and the starting point of the halving schedule.
	GenesisReward uint64

	// SubsidyReductionInterval is the interval of blocks before the subsidy
	// is halved.
	SubsidyReductionInterval uint64

	// BlockSizeLimit is the maximum number of transactions in a block,
	// coinbase included.
	BlockSizeLimit int

	// BlockVersion is the header version the builder writes.
	BlockVersion uint16

	// PowBits is the compact target every non-genesis block must use.
	PowBits uint32

	// GenesisBits is the compact target of the genesis block.
	GenesisBits uint32

	// GenesisTimeInMilliseconds and GenesisOwner fix the content of the
	// genesis block, which is derived from them deterministically.
	GenesisTimeInMilliseconds int64
	GenesisOwner              externalapi.PublicKeyHash
}

// Clone returns a copy of the params that can be modified freely.
func (p *Params) Clone() *Params {
	clone := *p
	return &clone
}

// mainnetGenesisOwner is a public key hash with no known key, so the genesis
// reward can never be spent on mainnet.
var mainnetGenesisOwner = externalapi.PublicKeyHash{
	0x6c, 0x65, 0x64, 0x67, 0x65, 0x72, 0x64, 0x2d, // ledgerd-
	0x67, 0x65, 0x6e, 0x65, 0x73, 0x69, 0x73, 0x00, // genesis
	0x00, 0x00, 0x00, 0x00,
}

// MainnetParams defines the network parameters for the main network.
var MainnetParams = Params{
	Name:                      "mainnet",
	GenesisReward:             genesisReward,
	SubsidyReductionInterval:  subsidyReductionInterval,
	BlockSizeLimit:            blockSizeLimit,
	BlockVersion:              blockVersion,
	PowBits:                   0x1f00ffff,
	GenesisBits:               genesisBits,
	GenesisTimeInMilliseconds: 0x18b882e0800, // 2023-11-01 00:00:00 UTC
	GenesisOwner:              mainnetGenesisOwner,
}

// SimnetParams defines the network parameters for the simulation test
// network. Its target is met by roughly every second hash, which makes it
// suitable for tests and local experiments.
var SimnetParams = Params{
	Name:                      "simnet",
	GenesisReward:             genesisReward,
	SubsidyReductionInterval:  subsidyReductionInterval,
	BlockSizeLimit:            blockSizeLimit,
	BlockVersion:              blockVersion,
	PowBits:                   0x207fffff,
	GenesisBits:               genesisBits,
	GenesisTimeInMilliseconds: 0x18b882e0800,
	GenesisOwner:              mainnetGenesisOwner,
}
