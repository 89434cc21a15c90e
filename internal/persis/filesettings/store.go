// Package filesettings stores settings as one JSON document per namespace.
package filesettings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/sellcomet/eddlicense/internal/license"
)

const (
	dirPerm  = 0700
	filePerm = 0600

	lockRetryDelay = 10 * time.Millisecond
)

// Store implements license.SettingsStore on the filesystem. An in-process
// mutex serializes goroutines and a lock file serializes processes sharing
// the directory.
type Store struct {
	dir string
	mu  sync.RWMutex
}

var _ license.SettingsStore = (*Store)(nil)

// New returns a store rooted at dir.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("filesettings: directory cannot be empty")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("filesettings: failed to create directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Get implements license.SettingsStore.
func (s *Store) Get(ctx context.Context, namespace, field string) (json.RawMessage, bool, error) {
	path, err := s.path(namespace)
	if err != nil {
		return nil, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lock := flock.New(path + ".lock")
	if _, err := lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return nil, false, fmt.Errorf("filesettings: failed to lock %s: %w", namespace, err)
	}
	defer func() { _ = lock.Unlock() }()

	doc, err := readDocument(path)
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[field]
	return v, ok, nil
}

// Set implements license.SettingsStore.
func (s *Store) Set(ctx context.Context, namespace, field string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("filesettings: value of %s.%s is not valid JSON", namespace, field)
	}
	return s.update(ctx, namespace, func(doc map[string]json.RawMessage) {
		doc[field] = value
	})
}

// Delete implements license.SettingsStore.
func (s *Store) Delete(ctx context.Context, namespace, field string) error {
	return s.update(ctx, namespace, func(doc map[string]json.RawMessage) {
		delete(doc, field)
	})
}

func (s *Store) update(ctx context.Context, namespace string, fn func(map[string]json.RawMessage)) error {
	path, err := s.path(namespace)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lock := flock.New(path + ".lock")
	if _, err := lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("filesettings: failed to lock %s: %w", namespace, err)
	}
	defer func() { _ = lock.Unlock() }()

	doc, err := readDocument(path)
	if err != nil {
		return err
	}
	fn(doc)

	if len(doc) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("filesettings: failed to remove %s: %w", path, err)
		}
		return nil
	}
	return writeDocument(path, doc)
}

func (s *Store) path(namespace string) (string, error) {
	if namespace == "" || strings.ContainsAny(namespace, `/\`) || strings.HasPrefix(namespace, ".") {
		return "", fmt.Errorf("filesettings: invalid namespace %q", namespace)
	}
	return filepath.Join(s.dir, namespace+".json"), nil
}

func readDocument(path string) (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	data, err := os.ReadFile(path) //nolint:gosec // path is built from the settings dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("filesettings: failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("filesettings: failed to parse %s: %w", path, err)
	}
	return doc, nil
}

// writeDocument replaces the file through a rename so readers never see a
// partial write.
func writeDocument(path string, doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("filesettings: failed to marshal %s: %w", path, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, filePerm); err != nil {
		return fmt.Errorf("filesettings: failed to write temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("filesettings: failed to rename temp file: %w", err)
	}
	return nil
}
