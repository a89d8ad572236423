package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/denisok6893-rgb/building-insights/internal/domain"
)

// SQLiteStore persists filter form snapshots.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) EnsureSchema() error {
	const createTable = `
CREATE TABLE IF NOT EXISTS filter_snapshots (
  key TEXT PRIMARY KEY,
  values_json TEXT NOT NULL DEFAULT '{}',
  saved_at INTEGER NOT NULL
);
`
	if _, err := s.db.Exec(createTable); err != nil {
		return fmt.Errorf("create filter_snapshots: %w", err)
	}
	return nil
}

// SaveSnapshot replaces the snapshot stored under snap.Key.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap domain.FilterSnapshot) (domain.FilterSnapshot, error) {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	if snap.Values == nil {
		snap.Values = map[string]string{}
	}
	vals, err := json.Marshal(snap.Values)
	if err != nil {
		return domain.FilterSnapshot{}, fmt.Errorf("marshal snapshot values: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO filter_snapshots (key, values_json, saved_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET values_json = excluded.values_json, saved_at = excluded.saved_at
`, snap.Key, string(vals), snap.SavedAt.UnixNano())
	if err != nil {
		return domain.FilterSnapshot{}, fmt.Errorf("save snapshot %q: %w", snap.Key, err)
	}
	return snap, nil
}

func (s *SQLiteStore) GetSnapshot(ctx context.Context, key string) (domain.FilterSnapshot, bool, error) {
	var (
		valsJSON string
		savedAt  int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT values_json, saved_at FROM filter_snapshots WHERE key = ?
`, key).Scan(&valsJSON, &savedAt)
	if err == sql.ErrNoRows {
		return domain.FilterSnapshot{}, false, nil
	}
	if err != nil {
		return domain.FilterSnapshot{}, false, err
	}

	snap := domain.FilterSnapshot{
		Key:     key,
		Values:  map[string]string{},
		SavedAt: time.Unix(0, savedAt).UTC(),
	}
	_ = json.Unmarshal([]byte(valsJSON), &snap.Values)
	return snap, true, nil
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM filter_snapshots WHERE key = ?`, key)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

// ListSnapshotKeys returns stored keys, most recently saved first.
func (s *SQLiteStore) ListSnapshotKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM filter_snapshots ORDER BY saved_at DESC, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
