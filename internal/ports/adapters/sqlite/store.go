package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/forPelevin/blockcut/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	source_video_url TEXT NOT NULL DEFAULT '',
	strategy TEXT NOT NULL DEFAULT '',
	total_before INTEGER NOT NULL DEFAULT 0,
	total_after INTEGER NOT NULL DEFAULT 0,
	duplicates_removed INTEGER NOT NULL DEFAULT 0,
	blocks_processed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// createdLayout is fixed width so created_at sorts as text.
const createdLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a RunStore backed by a single sqlite file.
type Store struct {
	db *sql.DB
}

// Open creates the database file and its parent directory when missing.
// ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers; one connection also keeps :memory: shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Record(ctx context.Context, r types.Run) error {
	const q = `
	INSERT INTO runs (id, kind, source_video_url, strategy, total_before, total_after, duplicates_removed, blocks_processed, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, q,
		r.ID, r.Kind, r.SourceVideoURL, r.Strategy,
		r.TotalBefore, r.TotalAfter, r.DuplicatesRemoved, r.BlocksProcessed,
		r.CreatedAt.UTC().Format(createdLayout),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]types.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
	SELECT id, kind, source_video_url, strategy, total_before, total_after, duplicates_removed, blocks_processed, created_at
	FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []types.Run{}
	for rows.Next() {
		var (
			r       types.Run
			created string
		)
		if err := rows.Scan(&r.ID, &r.Kind, &r.SourceVideoURL, &r.Strategy,
			&r.TotalBefore, &r.TotalAfter, &r.DuplicatesRemoved, &r.BlocksProcessed, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(createdLayout, created); err != nil {
			return nil, fmt.Errorf("run %s: parse created_at: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}
