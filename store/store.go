// Package store defines the persistence contract for collected products
// and provides the built-in SQLite backend. The orchestrator treats every
// backend uniformly through the Store interface and holds one only for the
// duration of a single site's insert.
package store

import (
	"context"
	"fmt"

	"github.com/ecomwatch/collector/extract"
)

// Store is the persistence contract. Connect acquires the backend,
// EnsureSchema makes it writable, Insert appends products tagged with the
// source site's display name, Close releases the backend. Implementations
// need not be safe for concurrent use: sites run strictly sequentially.
type Store interface {
	Connect(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	Insert(ctx context.Context, products []extract.Product, sourceTag string) (int, error)
	Close() error
}

// Descriptor names a backend and its location, as read from configuration.
type Descriptor struct {
	// Type selects the backend. Empty defaults to "sqlite".
	Type string `yaml:"type"`
	// Path is the database file for the sqlite backend.
	Path string `yaml:"path"`
}

// Open builds the Store for a descriptor. The connection itself is deferred
// to Connect.
func Open(d Descriptor) (Store, error) {
	switch d.Type {
	case "", "sqlite":
		path := d.Path
		if path == "" {
			path = "data/collector.db"
		}
		return NewSQLite(path), nil
	default:
		return nil, fmt.Errorf("store: unknown backend type %q", d.Type)
	}
}
