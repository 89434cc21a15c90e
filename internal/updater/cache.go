package updater

import (
	"context"
	"time"
)

// DefaultCacheTTL is how long a version check result is reused.
const DefaultCacheTTL = 3 * time.Hour

// CacheEntry is the cached result of one version check.
type CacheEntry struct {
	ItemName        string      `json:"itemName"`
	LastCheck       time.Time   `json:"lastCheck"`
	CurrentVersion  string      `json:"currentVersion"`
	Info            VersionInfo `json:"info"`
	UpdateAvailable bool        `json:"updateAvailable"`
}

// CacheStore persists version check results per item. Load returns nil, nil
// when nothing is cached for the item.
type CacheStore interface {
	Load(ctx context.Context, itemName string) (*CacheEntry, error)
	Save(ctx context.Context, entry *CacheEntry) error
	Clear(ctx context.Context) error
}

// isFresh reports whether entry can answer a check for currentVersion.
func isFresh(entry *CacheEntry, currentVersion string, ttl time.Duration, now time.Time) bool {
	if entry == nil {
		return false
	}
	if entry.CurrentVersion != currentVersion {
		return false
	}
	return now.Sub(entry.LastCheck) < ttl
}
