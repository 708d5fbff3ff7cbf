// package dal is the data access layer. It contains functions that perform SQL queries and logic
// that cannot be decoupled from the queries. Files correspond to SQL tables
package dal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoValue is returned when a key has never been written.
var ErrNoValue = errors.New("no value for key")

// GetValue reads the blob stored under key.
func GetValue(ctx context.Context, db *sql.DB, key string) ([]byte, error) {
	var value []byte

	query := "SELECT value FROM kv WHERE key = ?"
	err := db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNoValue, key)
		}
		return nil, fmt.Errorf("error querying kv: %w", err)
	}
	return value, nil
}

// PutValue inserts or replaces the blob stored under key.
func PutValue(ctx context.Context, db *sql.DB, key string, value []byte) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value,
		 updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("error writing kv: %w", err)
	}
	return nil
}
