// Package registry persists the recent-projects list.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Limit is the number of projects the registry retains.
const Limit = 10

// ErrNotFound is returned when no entry exists for a path.
var ErrNotFound = errors.New("project not registered")

// Project is a registry entry.
type Project struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	LastOpened time.Time `json:"lastOpened"`
}

// SQLite stores the registry in a SQLite database.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a SQLite registry.
type Option func(*SQLite)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *SQLite) { s.now = now }
}

// Open opens or creates the registry database at dbPath. ":memory:" keeps
// it in memory.
func Open(dbPath string, opts ...Option) (*SQLite, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}
	// One connection: an in-memory database is private to its connection.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		PRAGMA busy_timeout = 5000;
		CREATE TABLE IF NOT EXISTS recent_projects (
			path        TEXT PRIMARY KEY,
			id          TEXT NOT NULL,
			name        TEXT NOT NULL,
			last_opened INTEGER NOT NULL,
			seq         INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_recent_seq ON recent_projects(seq);
	`)
	if err != nil {
		_ = db.Close() // best-effort
		return nil, fmt.Errorf("init registry schema: %w", err)
	}

	s := &SQLite{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Touch adds path to the front of the registry, or promotes an existing
// entry. A new entry takes name; an existing one keeps its name unless
// setName is true. Entries beyond Limit are evicted oldest first.
func (s *SQLite) Touch(ctx context.Context, path, name string, setName bool) (Project, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Project{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	now := s.now()
	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM recent_projects`).Scan(&seq); err != nil {
		return Project{}, fmt.Errorf("next seq: %w", err)
	}

	p := Project{Path: path, LastOpened: now}
	err = tx.QueryRowContext(ctx, `SELECT id, name FROM recent_projects WHERE path = ?`, path).Scan(&p.ID, &p.Name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		p.ID = uuid.NewString()
		p.Name = name
		_, err = tx.ExecContext(ctx,
			`INSERT INTO recent_projects (path, id, name, last_opened, seq) VALUES (?, ?, ?, ?, ?)`,
			p.Path, p.ID, p.Name, now.UnixMilli(), seq)
	case err != nil:
		return Project{}, fmt.Errorf("lookup %s: %w", path, err)
	default:
		if setName {
			p.Name = name
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE recent_projects SET name = ?, last_opened = ?, seq = ? WHERE path = ?`,
			p.Name, now.UnixMilli(), seq, p.Path)
	}
	if err != nil {
		return Project{}, fmt.Errorf("upsert %s: %w", path, err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM recent_projects WHERE path NOT IN (
			SELECT path FROM recent_projects ORDER BY seq DESC LIMIT ?
		)`, Limit)
	if err != nil {
		return Project{}, fmt.Errorf("trim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Project{}, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// List returns the entries, most recently opened first.
func (s *SQLite) List(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, last_opened FROM recent_projects ORDER BY seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Project
	for rows.Next() {
		var p Project
		var ms int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Path, &ms); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		p.LastOpened = time.UnixMilli(ms)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get returns the entry for path.
func (s *SQLite) Get(ctx context.Context, path string) (Project, error) {
	p := Project{Path: path}
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, last_opened FROM recent_projects WHERE path = ?`, path).Scan(&p.ID, &p.Name, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return Project{}, fmt.Errorf("get %s: %w", path, err)
	}
	p.LastOpened = time.UnixMilli(ms)
	return p, nil
}

// Rename changes only the display name of an entry.
func (s *SQLite) Rename(ctx context.Context, path, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE recent_projects SET name = ? WHERE path = ?`, name, path)
	if err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return nil
}

// Remove deletes an entry. Removing an unknown path is not an error.
func (s *SQLite) Remove(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM recent_projects WHERE path = ?`, path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
