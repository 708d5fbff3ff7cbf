// Package store persists the channel registry snapshot. The registry always
// writes the whole collection, so a store only needs to load and save one blob.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("store: no snapshot saved")

// SnapshotKey is the key the registry snapshot is kept under in key-value backends.
const SnapshotKey = "channels"

// Store loads and saves the serialized registry.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

// Open returns the Store for a configured driver name.
func Open(driver, path string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite":
		s, err = OpenSQLite(path)
	case "badger":
		s, err = OpenBadger(path)
	case "memory":
		s = NewMemory()
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
