package ldb

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestLevelDBPutGetDelete(t *testing.T) {
	db, err := NewInMemoryLevelDB()
	if err != nil {
		t.Fatalf("TestLevelDBPutGetDelete: NewInMemoryLevelDB: %+v", err)
	}
	defer db.Close()

	key := []byte("key")
	value := []byte("value")
	err = db.Put(key, value)
	if err != nil {
		t.Fatalf("TestLevelDBPutGetDelete: Put: %+v", err)
	}
	has, err := db.Has(key)
	if err != nil || !has {
		t.Fatalf("TestLevelDBPutGetDelete: expected key to exist, has: %t, err: %+v", has, err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("TestLevelDBPutGetDelete: Get: %+v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("TestLevelDBPutGetDelete: expected %s but got %s", value, got)
	}

	err = db.Delete(key)
	if err != nil {
		t.Fatalf("TestLevelDBPutGetDelete: Delete: %+v", err)
	}
	got, err = db.Get(key)
	if err != nil {
		t.Fatalf("TestLevelDBPutGetDelete: Get after delete: %+v", err)
	}
	if got != nil {
		t.Fatalf("TestLevelDBPutGetDelete: expected nil after delete but got %x", got)
	}
}

func TestLevelDBForEach(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("TestLevelDBForEach: NewLevelDB: %+v", err)
	}
	defer db.Close()

	for _, key := range []string{"a-2", "a-1", "b-1"} {
		err := db.Put([]byte(key), []byte(key))
		if err != nil {
			t.Fatalf("TestLevelDBForEach: Put: %+v", err)
		}
	}

	var keys []string
	err = db.ForEach([]byte("a-"), func(key, value []byte) error {
		keys = append(keys, string(key))
		return nil
	})
	if err != nil {
		t.Fatalf("TestLevelDBForEach: ForEach: %+v", err)
	}
	if len(keys) != 2 || keys[0] != "a-1" || keys[1] != "a-2" {
		t.Fatalf("TestLevelDBForEach: expected [a-1 a-2] but got %v", keys)
	}
}
