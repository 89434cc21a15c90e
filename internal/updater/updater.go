// Package updater polls the licensing server for new versions of licensed
// extensions and caches the answer.
package updater

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sellcomet/eddlicense/internal/cmn/backoff"
	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
)

const defaultTimeout = 15 * time.Second

// Args describes one extension to the update checker.
type Args struct {
	Version    string
	License    string
	Author     string
	WPOverride bool
	Beta       bool
	ItemName   string
	// File is the plugin file the extension is loaded from; its base name
	// without extension becomes the slug.
	File string
}

// Slug returns the plugin slug sent to the server.
func (a Args) Slug() string {
	if a.File == "" {
		return a.ItemName
	}
	return strings.TrimSuffix(path.Base(a.File), path.Ext(a.File))
}

// VersionInfo is the get_version answer of the licensing server.
type VersionInfo struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	NewVersion    string `json:"new_version"`
	StableVersion string `json:"stable_version"`
	URL           string `json:"url"`
	Homepage      string `json:"homepage"`
	Package       string `json:"package"`
	DownloadLink  string `json:"download_link"`
	LastUpdated   string `json:"last_updated"`
}

// Registry holds one Updater per licensed item.
type Registry struct {
	mu       sync.Mutex
	updaters map[string]*Updater

	client        *resty.Client
	cache         CacheStore
	ttl           time.Duration
	siteURL       string
	retryInterval time.Duration
	now           func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithSiteURL sets the site URL reported with every check.
func WithSiteURL(u string) Option {
	return func(r *Registry) {
		r.siteURL = u
	}
}

// WithCacheTTL sets how long check results are reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.client.SetTimeout(d)
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify(skip bool) Option {
	return func(r *Registry) {
		if skip {
			r.client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}) //nolint:gosec // explicit opt-in
		}
	}
}

// WithRetryInterval sets the initial backoff between retries.
func WithRetryInterval(d time.Duration) Option {
	return func(r *Registry) {
		r.retryInterval = d
	}
}

// NewRegistry returns an empty registry. cache may be nil, in which case
// every Check goes to the server.
func NewRegistry(cache CacheStore, opts ...Option) *Registry {
	r := &Registry{
		updaters: make(map[string]*Updater),
		client: resty.New().
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
		cache:         cache,
		ttl:           DefaultCacheTTL,
		retryInterval: time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records the updater for args.ItemName. Registering the same item
// again replaces its arguments.
func (r *Registry) Register(ctx context.Context, apiURL string, args Args) error {
	if args.ItemName == "" {
		return fmt.Errorf("item name is required")
	}
	if apiURL == "" {
		return fmt.Errorf("api url is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.updaters[args.ItemName] = &Updater{registry: r, apiURL: apiURL, args: args}
	logger.Debug(ctx, "Registered updater",
		tag.Product(args.ItemName),
		tag.Version(args.Version),
		tag.URL(apiURL))
	return nil
}

// Get returns the updater registered for itemName.
func (r *Registry) Get(itemName string) (*Updater, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.updaters[itemName]
	return u, ok
}

// Updaters returns all registered updaters ordered by item name.
func (r *Registry) Updaters() []*Updater {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Updater, 0, len(r.updaters))
	for _, u := range r.updaters {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].args.ItemName < out[j].args.ItemName })
	return out
}

// Invalidate drops every cached check result so the next Check asks the
// server again.
func (r *Registry) Invalidate(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear update cache: %w", err)
	}
	return nil
}

// Updater checks one item for new versions.
type Updater struct {
	registry *Registry
	apiURL   string
	args     Args
}

// Args returns the arguments the updater was registered with.
func (u *Updater) Args() Args {
	return u.args
}

// Check returns the latest version information for the item, from the cache
// when it is still fresh.
func (u *Updater) Check(ctx context.Context) (*CacheEntry, error) {
	r := u.registry
	if r.cache != nil {
		entry, err := r.cache.Load(ctx, u.args.ItemName)
		if err != nil {
			logger.Warn(ctx, "Failed to read update cache", tag.Product(u.args.ItemName), tag.Error(err))
		} else if isFresh(entry, u.args.Version, r.ttl, r.now()) {
			return entry, nil
		}
	}

	info, err := u.fetch(ctx)
	if err != nil {
		return nil, err
	}

	entry := &CacheEntry{
		ItemName:        u.args.ItemName,
		LastCheck:       r.now(),
		CurrentVersion:  u.args.Version,
		Info:            *info,
		UpdateAvailable: IsNewer(u.args.Version, info.NewVersion),
	}
	if r.cache != nil {
		if err := r.cache.Save(ctx, entry); err != nil {
			logger.Warn(ctx, "Failed to write update cache", tag.Product(u.args.ItemName), tag.Error(err))
		}
	}
	return entry, nil
}

func (u *Updater) fetch(ctx context.Context) (*VersionInfo, error) {
	r := u.registry
	form := map[string]string{
		"edd_action": "get_version",
		"license":    u.args.License,
		"item_name":  u.args.ItemName,
		"version":    u.args.Version,
		"slug":       u.args.Slug(),
		"author":     u.args.Author,
		"url":        r.siteURL,
		"beta":       boolParam(u.args.Beta),
	}

	var info VersionInfo
	err := backoff.Retry(ctx, func(ctx context.Context) error {
		resp, err := r.client.R().SetContext(ctx).SetFormData(form).Post(u.apiURL)
		if err != nil {
			return err
		}
		if !resp.IsSuccess() {
			return &StatusError{StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
		}
		if err := json.Unmarshal(resp.Body(), &info); err != nil {
			return fmt.Errorf("%w: %w", errMalformedAnswer, err)
		}
		return nil
	}, r.retryPolicy(), shouldRetry)
	if err != nil {
		return nil, fmt.Errorf("failed to check version of %s: %w", u.args.ItemName, err)
	}
	return &info, nil
}

// StatusError is a non-2xx answer to a version check.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("licensing server answered %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

var errMalformedAnswer = errors.New("malformed version info")

// shouldRetry retries network errors, 429 and 5xx answers.
func shouldRetry(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return !errors.Is(err, errMalformedAnswer)
}

func (r *Registry) retryPolicy() backoff.RetryPolicy {
	p := backoff.NewExponentialBackoffPolicy(r.retryInterval)
	p.BackoffFactor = 2
	p.MaxInterval = 5 * time.Second
	p.MaxRetries = 3
	return backoff.WithJitter(p, backoff.FullJitter)
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
