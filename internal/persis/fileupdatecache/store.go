// Package fileupdatecache persists version check results as JSON files.
package fileupdatecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sellcomet/eddlicense/internal/updater"
)

const (
	cacheDirName = "updates"
	dirPerm      = 0750
	filePerm     = 0600
)

// Store implements updater.CacheStore with one file per item.
type Store struct {
	dir string
	mu  sync.Mutex
}

var _ updater.CacheStore = (*Store)(nil)

// New creates the cache directory below dataDir.
func New(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("fileupdatecache: data directory cannot be empty")
	}
	dir := filepath.Join(dataDir, cacheDirName)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("fileupdatecache: failed to create directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load returns the cached entry for itemName. A missing or unreadable entry
// yields nil, nil so that the caller checks again.
func (s *Store) Load(_ context.Context, itemName string) (*updater.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(itemName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("fileupdatecache: failed to read cache: %w", err)
	}

	var entry updater.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, nil
	}
	return &entry, nil
}

// Save writes entry atomically.
func (s *Store) Save(_ context.Context, entry *updater.CacheEntry) error {
	if entry == nil || entry.ItemName == "" {
		return errors.New("fileupdatecache: entry without item name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("fileupdatecache: failed to marshal cache: %w", err)
	}

	path := s.path(entry.ItemName)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, filePerm); err != nil {
		return fmt.Errorf("fileupdatecache: failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("fileupdatecache: failed to rename temp file: %w", err)
	}
	return nil
}

// Clear removes every cached entry.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return fmt.Errorf("fileupdatecache: failed to list cache: %w", err)
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("fileupdatecache: failed to remove %s: %w", m, err)
		}
	}
	return nil
}

func (s *Store) path(itemName string) string {
	name := strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(itemName)
	return filepath.Join(s.dir, name+".json")
}
