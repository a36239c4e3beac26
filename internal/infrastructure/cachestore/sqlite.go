package cachestore

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
	_ "modernc.org/sqlite"

	"github.com/andryanduta/predikta/internal/platform/cache"
)

var tableNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// OpenSQLite opens (and creates if absent) the snapshot database file.
func OpenSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := otelsqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY churn from concurrent snapshot writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	return db, nil
}

// SQLiteStore persists full cache snapshots into one table. Each cache
// instance gets its own table so TTL semantics stay per-store.
type SQLiteStore struct {
	db    *sqlx.DB
	table string
}

func NewSQLiteStore(ctx context.Context, db *sqlx.DB, table string) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid snapshot table name %q", table)
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		cache_key TEXT PRIMARY KEY,
		value     BLOB NOT NULL,
		stored_at TEXT NOT NULL
	)`, table)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create snapshot table %s: %w", table, err)
	}

	return &SQLiteStore{db: db, table: table}, nil
}

type snapshotRow struct {
	CacheKey string `db:"cache_key"`
	Value    []byte `db:"value"`
	StoredAt string `db:"stored_at"`
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]cache.PersistedEntry, error) {
	var rows []snapshotRow
	query := fmt.Sprintf("SELECT cache_key, value, stored_at FROM %s", s.table)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("load cache snapshot from %s: %w", s.table, err)
	}

	out := make(map[string]cache.PersistedEntry, len(rows))
	for _, row := range rows {
		storedAt, err := time.Parse(time.RFC3339Nano, row.StoredAt)
		if err != nil {
			// A corrupt timestamp invalidates only its own row.
			continue
		}
		out[row.CacheKey] = cache.PersistedEntry{Value: row.Value, StoredAt: storedAt}
	}
	return out, nil
}

// Save replaces the whole table with the given snapshot atomically.
func (s *SQLiteStore) Save(ctx context.Context, snapshot map[string]cache.PersistedEntry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return fmt.Errorf("clear snapshot table %s: %w", s.table, err)
	}

	insert := fmt.Sprintf("INSERT INTO %s (cache_key, value, stored_at) VALUES (?, ?, ?)", s.table)
	for key, entry := range snapshot {
		if _, err := tx.ExecContext(ctx, insert, key, entry.Value, entry.StoredAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("insert snapshot row %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}
