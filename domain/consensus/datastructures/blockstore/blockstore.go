// Package blockstore archives accepted blocks in a key-value database so
// they can be replayed on restart.
package blockstore

import (
	"bytes"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/serialization"
	"github.com/tinycrypto/ledgerd/util/binaryserializer"
)

var bucket = []byte("blocks/")
var countKey = []byte("blocks-count")

// DataAccessor is the part of a key-value database the block store uses.
type DataAccessor interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	ForEach(prefix []byte, f func(key, value []byte) error) error
}

// BlockStore represents a store of blocks, keyed by hash.
type BlockStore struct {
	db          DataAccessor
	cache       *ttlcache.Cache[externalapi.DomainHash, *externalapi.DomainBlock]
	countCached uint64
}

// New instantiates a new BlockStore over db, keeping up to cacheSize
// recently used blocks in memory.
func New(db DataAccessor, cacheSize uint64) (*BlockStore, error) {
	blockStore := &BlockStore{
		db: db,
		cache: ttlcache.New[externalapi.DomainHash, *externalapi.DomainBlock](
			ttlcache.WithCapacity[externalapi.DomainHash, *externalapi.DomainBlock](cacheSize),
		),
	}

	err := blockStore.initializeCount()
	if err != nil {
		return nil, err
	}
	return blockStore, nil
}

func (bs *BlockStore) initializeCount() error {
	countBytes, err := bs.db.Get(countKey)
	if err != nil {
		return err
	}
	if countBytes == nil {
		bs.countCached = 0
		return nil
	}
	count, err := binaryserializer.Uint64(bytes.NewReader(countBytes))
	if err != nil {
		return errors.Wrap(err, "corrupted block count")
	}
	bs.countCached = count
	return nil
}

// Put stores block under blockHash. Storing a block that is already stored
// is a no-op.
func (bs *BlockStore) Put(blockHash *externalapi.DomainHash, block *externalapi.DomainBlock) error {
	has, err := bs.Has(blockHash)
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	blockBytes, err := serialization.BlockToBytes(block)
	if err != nil {
		return err
	}
	err = bs.db.Put(bs.hashAsKey(blockHash), blockBytes)
	if err != nil {
		return err
	}

	var countBuf bytes.Buffer
	err = binaryserializer.PutUint64(&countBuf, bs.countCached+1)
	if err != nil {
		return err
	}
	err = bs.db.Put(countKey, countBuf.Bytes())
	if err != nil {
		return err
	}
	bs.countCached++
	bs.cache.Set(*blockHash, block.Clone(), ttlcache.DefaultTTL)
	return nil
}

// Block gets the block associated with the given blockHash
func (bs *BlockStore) Block(blockHash *externalapi.DomainHash) (*externalapi.DomainBlock, error) {
	if item := bs.cache.Get(*blockHash); item != nil {
		return item.Value().Clone(), nil
	}

	blockBytes, err := bs.db.Get(bs.hashAsKey(blockHash))
	if err != nil {
		return nil, err
	}
	if blockBytes == nil {
		return nil, errors.Errorf("block %s not found", blockHash)
	}
	block, err := serialization.BytesToBlock(blockBytes)
	if err != nil {
		return nil, err
	}
	bs.cache.Set(*blockHash, block, ttlcache.DefaultTTL)
	return block.Clone(), nil
}

// Has returns whether the given blockHash exists in the store
func (bs *BlockStore) Has(blockHash *externalapi.DomainHash) (bool, error) {
	if bs.cache.Has(*blockHash) {
		return true, nil
	}
	return bs.db.Has(bs.hashAsKey(blockHash))
}

// Count returns the count of the blocks in the store
func (bs *BlockStore) Count() uint64 {
	return bs.countCached
}

// ForEach calls f with every stored block, in hash order, until f returns an
// error.
func (bs *BlockStore) ForEach(f func(blockHash *externalapi.DomainHash, block *externalapi.DomainBlock) error) error {
	return bs.db.ForEach(bucket, func(key, value []byte) error {
		blockHash, err := externalapi.NewDomainHashFromByteSlice(key[len(bucket):])
		if err != nil {
			return errors.Wrapf(err, "malformed block key %x", key)
		}
		block, err := serialization.BytesToBlock(value)
		if err != nil {
			return errors.Wrapf(err, "malformed block %s", blockHash)
		}
		return f(blockHash, block)
	})
}

func (bs *BlockStore) hashAsKey(hash *externalapi.DomainHash) []byte {
	key := make([]byte, 0, len(bucket)+externalapi.DomainHashSize)
	key = append(key, bucket...)
	return append(key, hash[:]...)
}
