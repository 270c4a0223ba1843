package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresStore keeps the key-value data in a single Postgres table so the
// service can share a database with the rest of the deployment.
type PostgresStore struct {
	db *sqlx.DB
}

// ConnectPostgres connects to Postgres and ensures the kv table exists.
func ConnectPostgres(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv_entries (
        key TEXT PRIMARY KEY,
        value BYTEA NOT NULL,
        updated_at TIMESTAMPTZ DEFAULT NOW()
    );`); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Println("postgres kv store ready")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.GetContext(ctx, &value, `SELECT value FROM kv_entries WHERE key=$1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv_entries (key, value, updated_at) VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`, key, value)
	return err
}

func (s *PostgresStore) SetIfUnchanged(ctx context.Context, key string, old, value []byte) error {
	if old == nil {
		res, err := s.db.ExecContext(ctx, `INSERT INTO kv_entries (key, value) VALUES ($1, $2)
            ON CONFLICT (key) DO NOTHING`, key, value)
		if err != nil {
			return err
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrModified
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, `UPDATE kv_entries SET value=$2, updated_at=NOW() WHERE key=$1 AND value=$3`, key, value, old)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrModified
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key=$1`, key)
	return err
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
