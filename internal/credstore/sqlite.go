package credstore

import (
	"context"
	"database/sql"
	"errors"

	apperrors "github.com/spec-kit/thelewala-agent/pkg/util/errorutil"
)

// SQLiteStore keeps credentials in the device database's credentials table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an opened database that has the credentials table.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM credentials WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStorageFailure("exists", err)
	}
	return true, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", apperrors.NewStorageFailure("read", err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string, policy AccessPolicy) error {
	const query = `
INSERT INTO credentials (key, value, policy, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, policy = excluded.policy, updated_at = CURRENT_TIMESTAMP`
	if _, err := s.db.ExecContext(ctx, query, key, value, int(normalizePolicy(policy))); err != nil {
		return apperrors.NewStorageFailure("write", err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE key = ?`, key); err != nil {
		return apperrors.NewStorageFailure("remove", err)
	}
	return nil
}
