package blockstore

import (
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/cryptoprovider"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/testutils"
	"github.com/tinycrypto/ledgerd/infrastructure/db/database/ldb"
)

func TestBlockStore(t *testing.T) {
	db, err := ldb.NewInMemoryLevelDB()
	if err != nil {
		t.Fatalf("TestBlockStore: NewInMemoryLevelDB: %+v", err)
	}
	defer db.Close()

	provider := cryptoprovider.New()
	params := testutils.SimnetParams()
	owner := testutils.NewWallet(t, provider, 1).Owner

	store, err := New(db, 1)
	if err != nil {
		t.Fatalf("TestBlockStore: New: %+v", err)
	}

	genesis := testutils.BuildBlock(t, provider, params, &externalapi.ZeroHash, 0, 50, owner)
	genesisHash := consensushashing.BlockHash(provider, genesis)
	child := testutils.BuildBlock(t, provider, params, genesisHash, 1, 50, owner)
	childHash := consensushashing.BlockHash(provider, child)

	for _, block := range []*externalapi.DomainBlock{genesis, child, genesis} {
		err := store.Put(consensushashing.BlockHash(provider, block), block)
		if err != nil {
			t.Fatalf("TestBlockStore: Put: %+v", err)
		}
	}
	if store.Count() != 2 {
		t.Fatalf("TestBlockStore: expected 2 blocks, got %d", store.Count())
	}

	// The cache holds a single block, so one of these is read back from
	// the database.
	for _, hash := range []*externalapi.DomainHash{genesisHash, childHash} {
		block, err := store.Block(hash)
		if err != nil {
			t.Fatalf("TestBlockStore: Block: %+v", err)
		}
		if !consensushashing.BlockHash(provider, block).Equal(hash) {
			t.Fatalf("TestBlockStore: got the wrong block for %s:\n%s", hash, spew.Sdump(block))
		}
	}
	fetched, err := store.Block(childHash)
	if err != nil {
		t.Fatalf("TestBlockStore: Block: %+v", err)
	}
	if !reflect.DeepEqual(fetched, child) {
		t.Fatalf("TestBlockStore: stored block differs:\n%s\n%s", spew.Sdump(fetched), spew.Sdump(child))
	}

	has, err := store.Has(&externalapi.DomainHash{0xff})
	if err != nil {
		t.Fatalf("TestBlockStore: Has: %+v", err)
	}
	if has {
		t.Fatalf("TestBlockStore: unknown block reported as stored")
	}
	_, err = store.Block(&externalapi.DomainHash{0xff})
	if err == nil {
		t.Fatalf("TestBlockStore: fetching an unknown block succeeded")
	}

	reopened, err := New(db, 10)
	if err != nil {
		t.Fatalf("TestBlockStore: New: %+v", err)
	}
	if reopened.Count() != 2 {
		t.Fatalf("TestBlockStore: reopened store counts %d blocks", reopened.Count())
	}
	seen := make(map[externalapi.DomainHash]bool)
	err = reopened.ForEach(func(blockHash *externalapi.DomainHash, block *externalapi.DomainBlock) error {
		if !consensushashing.BlockHash(provider, block).Equal(blockHash) {
			t.Fatalf("TestBlockStore: ForEach returned block under the wrong key %s", blockHash)
		}
		seen[*blockHash] = true
		return nil
	})
	if err != nil {
		t.Fatalf("TestBlockStore: ForEach: %+v", err)
	}
	if len(seen) != 2 || !seen[*genesisHash] || !seen[*childHash] {
		t.Fatalf("TestBlockStore: ForEach returned %d blocks", len(seen))
	}
}
