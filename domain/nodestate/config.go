package nodestate

import (
	"time"

	"github.com/tinycrypto/ledgerd/domain/consensus/processes/blockmanager"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
	"github.com/tinycrypto/ledgerd/domain/miningmanager/mempool"
)

const (
	defaultBlockCacheSize    = 200
	defaultSnapshotCacheSize = 16
	defaultSnapshotTTL       = 10 * time.Minute
)

// Config holds the parameters NodeState and the managers it owns are built
// with.
type Config struct {
	Params       *ledgerconfig.Params
	BlockManager *blockmanager.Config
	Mempool      *mempool.Config

	// BlockCacheSize is the number of deserialized blocks the block archive
	// keeps in memory.
	BlockCacheSize uint64

	// SnapshotCacheSize and SnapshotTTL bound the cache of UTXO sets of
	// blocks off the selected chain, which blocks extending them are
	// validated against.
	SnapshotCacheSize uint64
	SnapshotTTL       time.Duration
}

// DefaultConfig returns the default configuration for params.
func DefaultConfig(params *ledgerconfig.Params) *Config {
	return &Config{
		Params:            params,
		BlockManager:      blockmanager.DefaultConfig(),
		Mempool:           mempool.DefaultConfig(),
		BlockCacheSize:    defaultBlockCacheSize,
		SnapshotCacheSize: defaultSnapshotCacheSize,
		SnapshotTTL:       defaultSnapshotTTL,
	}
}
