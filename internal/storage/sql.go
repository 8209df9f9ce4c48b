package storage

import (
	"context"
	"database/sql"
	"errors"
)

// SQL stores keys in the MySQL kv_store table (see database.Migrate).
type SQL struct{ db *sql.DB }

func NewSQL(db *sql.DB) *SQL { return &SQL{db: db} }

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT v FROM kv_store WHERE k=? LIMIT 1", key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

const upsertKV = "INSERT INTO kv_store (k, v) VALUES (?,?) ON DUPLICATE KEY UPDATE v=VALUES(v)"

func (s *SQL) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, upsertKV, key, value)
	return err
}

func (s *SQL) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv_store WHERE k=?", key)
	return err
}

// Apply writes the batch inside one transaction.
func (s *SQL) Apply(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, e := range entries {
		if e.Delete {
			_, err = tx.ExecContext(ctx, "DELETE FROM kv_store WHERE k=?", e.Key)
		} else {
			_, err = tx.ExecContext(ctx, upsertKV, e.Key, e.Value)
		}
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
