package state

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/modelops/cardflow/internal/core"
)

// NewStore creates a core.Store for the configured backend. path is a
// directory for the JSON backend and a database file for SQLite.
func NewStore(backend, path string) (core.Store, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "json":
		return NewJSONStore(path), nil
	case "sqlite":
		if !strings.HasSuffix(path, ".db") {
			path = filepath.Join(path, "state.db")
		}
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown state backend %q (want json or sqlite)", backend)
	}
}

// Closeable is an optional interface for stores that need cleanup.
type Closeable interface {
	Close() error
}

// CloseStore safely closes a store if it implements Closeable.
func CloseStore(s core.Store) error {
	if closeable, ok := s.(Closeable); ok {
		return closeable.Close()
	}
	return nil
}
