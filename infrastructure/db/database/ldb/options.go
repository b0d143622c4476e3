package ldb

import (
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// bloomFilterBitsPerKey sizes the filter that lets a lookup of a block hash
// that is not in the archive skip reading the tables.
const bloomFilterBitsPerKey = 10

// Options returns the options the block archive is opened with. Blocks are
// written once and read by hash, so the write buffer is small and compaction
// is never triggered by seeks.
func Options() *opt.Options {
	return &opt.Options{
		Compression:            opt.SnappyCompression,
		BlockCacheCapacity:     16 * opt.MiB,
		WriteBuffer:            4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(bloomFilterBitsPerKey),
		DisableSeeksCompaction: true,
	}
}
