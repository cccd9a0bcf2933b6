// Package state provides the key-value persistence backends behind the
// core.Store port: a JSON-file store and a SQLite store.
package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/modelops/cardflow/internal/core"
)

// JSONStore implements core.Store with one JSON file per key under a
// directory. Every SetItem rewrites the whole value (last snapshot wins).
type JSONStore struct {
	dir string
}

// NewJSONStore creates a JSON store rooted at dir.
func NewJSONStore(dir string) *JSONStore {
	return &JSONStore{dir: dir}
}

// itemEnvelope wraps a stored value with integrity metadata.
type itemEnvelope struct {
	Version   int             `json:"version"`
	Checksum  string          `json:"checksum"`
	UpdatedAt time.Time       `json:"updated_at"`
	Value     json.RawMessage `json:"value"`
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func (s *JSONStore) pathFor(key string) string {
	return filepath.Join(s.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

// SetItem marshals value and writes it atomically under key.
func (s *JSONStore) SetItem(_ context.Context, key string, value any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling value for %s: %w", key, err)
	}

	hash := sha256.Sum256(raw)
	envelope := itemEnvelope{
		Version:   1,
		Checksum:  hex.EncodeToString(hash[:]),
		UpdatedAt: time.Now(),
		Value:     raw,
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling envelope for %s: %w", key, err)
	}

	if err := atomicWriteFile(s.pathFor(key), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// GetItem reads the value stored under key into dest. A key that has never
// been written yields (false, nil).
func (s *JSONStore) GetItem(_ context.Context, key string, dest any) (bool, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", key, err)
	}

	var envelope itemEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return false, fmt.Errorf("unmarshaling envelope for %s: %w", key, err)
	}

	hash := sha256.Sum256(envelope.Value)
	if hex.EncodeToString(hash[:]) != envelope.Checksum {
		return false, core.ErrState(core.CodeStateCorrupted, "checksum mismatch for "+key)
	}

	if err := json.Unmarshal(envelope.Value, dest); err != nil {
		return false, fmt.Errorf("unmarshaling value for %s: %w", key, err)
	}
	return true, nil
}

// Dir returns the store's root directory.
func (s *JSONStore) Dir() string {
	return s.dir
}

// Verify that JSONStore implements core.Store.
var _ core.Store = (*JSONStore)(nil)
