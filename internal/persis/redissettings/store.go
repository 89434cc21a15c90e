// Package redissettings stores settings in Redis, one hash per namespace.
package redissettings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sellcomet/eddlicense/internal/license"
)

const keyPrefix = "eddlicense:settings:"

// Store implements license.SettingsStore on Redis hashes.
type Store struct {
	client redis.UniversalClient
}

var _ license.SettingsStore = (*Store)(nil)

// Open parses url, connects and pings the server.
func Open(ctx context.Context, url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redissettings: invalid url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redissettings: failed to connect: %w", err)
	}
	return New(client), nil
}

// New wraps an existing client.
func New(client redis.UniversalClient) *Store {
	return &Store{client: client}
}

func hashKey(namespace string) string {
	return keyPrefix + namespace
}

// Get implements license.SettingsStore.
func (s *Store) Get(ctx context.Context, namespace, field string) (json.RawMessage, bool, error) {
	v, err := s.client.HGet(ctx, hashKey(namespace), field).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redissettings: failed to read %s.%s: %w", namespace, field, err)
	}
	return json.RawMessage(v), true, nil
}

// Set implements license.SettingsStore.
func (s *Store) Set(ctx context.Context, namespace, field string, value json.RawMessage) error {
	if !json.Valid(value) {
		return fmt.Errorf("redissettings: value of %s.%s is not valid JSON", namespace, field)
	}
	if err := s.client.HSet(ctx, hashKey(namespace), field, string(value)).Err(); err != nil {
		return fmt.Errorf("redissettings: failed to write %s.%s: %w", namespace, field, err)
	}
	return nil
}

// Delete implements license.SettingsStore.
func (s *Store) Delete(ctx context.Context, namespace, field string) error {
	if err := s.client.HDel(ctx, hashKey(namespace), field).Err(); err != nil {
		return fmt.Errorf("redissettings: failed to delete %s.%s: %w", namespace, field, err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}
