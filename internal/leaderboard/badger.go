package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// BadgerStore keeps records in an embedded badger database. An empty path
// opens an in-memory database.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.MetricsEnabled = false
	if path == "" {
		opts.InMemory = true
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return out, err
}

func (b *BadgerStore) Put(_ context.Context, key string, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}
