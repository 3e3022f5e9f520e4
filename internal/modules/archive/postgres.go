package archive

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

// PostgresStore keeps slots in a kv_slots table.
type PostgresStore struct{ db *sql.DB }

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

// Migrate creates the kv_slots table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_slots (
		  key        TEXT PRIMARY KEY,
		  value      TEXT NOT NULL,
		  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return errors.Wrap(err, "migrate kv_slots")
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_slots WHERE key=$1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "read slot %s", key)
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_slots (key, value) VALUES ($1,$2)
		ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`,
		key, value)
	return errors.Wrapf(err, "write slot %s", key)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
