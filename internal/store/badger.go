package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Badger keeps the snapshot in an embedded badger database directory.
type Badger struct {
	db *badger.DB
}

func OpenBadger(dir string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("error opening badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Load(_ context.Context) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(SnapshotKey))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error reading snapshot: %w", err)
	}
	return data, nil
}

// Save commits the snapshot and syncs it to disk before returning.
func (b *Badger) Save(_ context.Context, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(SnapshotKey), data)
	})
	if err != nil {
		return fmt.Errorf("error writing snapshot: %w", err)
	}
	return b.db.Sync()
}

func (b *Badger) Close() error {
	return b.db.Close()
}
