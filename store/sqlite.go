package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ecomwatch/collector/extract"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	brand        TEXT,
	model        TEXT,
	finish       TEXT,
	specs        TEXT,
	price        TEXT,
	url          TEXT,
	image        TEXT,
	availability TEXT,
	site_source  TEXT,
	collected_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_site ON products(site_source);
`

// SQLite is the built-in file-backed Store.
type SQLite struct {
	path string
	db   *sql.DB
}

// NewSQLite creates an SQLite store for the given database file. Nothing is
// opened until Connect.
func NewSQLite(path string) *SQLite {
	return &SQLite{path: path}
}

// Connect opens the database file, creating parent directories, and applies
// the write-safety pragmas.
func (s *SQLite) Connect(ctx context.Context) error {
	if s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			return fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("store: ping: %w", err)
	}

	s.db = db
	return nil
}

// EnsureSchema creates the products table when missing.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: schema: %w", err)
	}
	return nil
}

// Insert appends products in one transaction and returns how many rows were
// written. The sourceTag overrides whatever Site value the records carry:
// the tag is the caller's display name for the site.
func (s *SQLite) Insert(ctx context.Context, products []extract.Product, sourceTag string) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (brand, model, finish, specs, price, url, image,
			availability, site_source, collected_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	count := 0
	for _, p := range products {
		collected := p.CollectedAt
		if collected.IsZero() {
			collected = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			p.Brand, p.Model, p.Finish, p.Specs, p.Price, p.URL, p.Image,
			p.Availability, sourceTag, collected.Format(time.RFC3339)); err != nil {
			return count, fmt.Errorf("store: insert: %w", err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return count, nil
}

// Close releases the database handle. Safe to call after a failed Connect.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
