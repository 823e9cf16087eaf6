// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
)

// fileDocument is the on-disk envelope for one key.
type fileDocument struct {
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
	Text      *string         `json:"text,omitempty"`
}

// FileStore keeps one JSON document per key in a directory. Writes are atomic.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("sessionstore: file backend requires a path")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("sessionstore: create dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+".json")
}

// Get reads the document for key. Undecodable documents count as absent.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sessionstore: read %s: %w", key, err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ErrNotFound
	}
	if doc.ExpiresAt != nil && expired(s.now(), *doc.ExpiresAt) {
		_ = os.Remove(s.path(key))
		return nil, ErrNotFound
	}
	if doc.Text != nil {
		return []byte(*doc.Text), nil
	}
	return append([]byte(nil), doc.Value...), nil
}

// Set writes the document atomically via a pending file.
func (s *FileStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var doc fileDocument
	if json.Valid(value) {
		doc.Value = json.RawMessage(value)
	} else {
		text := string(value)
		doc.Text = &text
	}
	if at := expiry(s.now(), ttl); !at.IsZero() {
		doc.ExpiresAt = &at
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("sessionstore: encode %s: %w", key, err)
	}

	pf, err := renameio.NewPendingFile(s.path(key), renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("sessionstore: pending file: %w", err)
	}
	defer func() { _ = pf.Cleanup() }()

	if _, err := pf.Write(data); err != nil {
		return fmt.Errorf("sessionstore: write %s: %w", key, err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("sessionstore: replace %s: %w", key, err)
	}
	return nil
}

// Delete removes the document for key.
func (s *FileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("sessionstore: delete %s: %w", key, err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
