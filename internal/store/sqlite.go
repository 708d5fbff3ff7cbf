package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gregriff/vogo/relay/internal/dal"
	"github.com/gregriff/vogo/relay/internal/db"
)

// SQLite keeps the snapshot in the kv table of a sqlite database.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	conn, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: conn}, nil
}

func (s *SQLite) Load(ctx context.Context) ([]byte, error) {
	data, err := dal.GetValue(ctx, s.db, SnapshotKey)
	if errors.Is(err, dal.ErrNoValue) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *SQLite) Save(ctx context.Context, data []byte) error {
	return dal.PutValue(ctx, s.db, SnapshotKey, data)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
