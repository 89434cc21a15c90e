package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sellcomet/eddlicense/internal/cmn/config"
	"github.com/sellcomet/eddlicense/internal/extensions"
	"github.com/sellcomet/eddlicense/internal/host"
	"github.com/sellcomet/eddlicense/internal/license"
	"github.com/sellcomet/eddlicense/internal/nonce"
	"github.com/sellcomet/eddlicense/internal/persis"
	"github.com/sellcomet/eddlicense/internal/updater"
)

// cliUser is the acting user of commands run from the terminal. It holds
// the manage capability next to the configured admin users.
const cliUser = "eddlicense-cli"

// Runtime is the set of collaborators the license clients run with.
type Runtime struct {
	Config   *config.Config
	Store    persis.SettingsStore
	Updaters *updater.Registry
	Tokens   *nonce.Manager
	Registry *prometheus.Registry
	Loader   *extensions.Loader
}

// NewRuntime opens the configured stores and builds the extension loader.
func (c *Context) NewRuntime() (*Runtime, error) {
	return NewRuntime(c.Context, c.Config)
}

// NewRuntime opens the configured stores and builds the extension loader.
func NewRuntime(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	store, err := persis.OpenSettings(ctx, cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}

	rt, err := newRuntime(cfg, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return rt, nil
}

func newRuntime(cfg *config.Config, store persis.SettingsStore) (*Runtime, error) {
	cache, err := persis.OpenUpdateCache(cfg.Paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open update cache: %w", err)
	}
	updaters := updater.NewRegistry(cache,
		updater.WithSiteURL(cfg.Core.SiteURL),
		updater.WithCacheTTL(cfg.Updater.CacheTTL),
		updater.WithTimeout(cfg.License.Timeout),
		updater.WithInsecureSkipVerify(cfg.License.InsecureSkipVerify),
	)

	tokens, err := nonce.New(cfg.Server.NonceSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create nonce manager: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := license.NewMetrics(registry)

	remote := license.NewRemoteClient(cfg.License.APIURL,
		license.WithTimeout(cfg.License.Timeout),
		license.WithInsecureSkipVerify(cfg.License.InsecureSkipVerify),
		license.WithUserAgent(fmt.Sprintf("%s/%s; %s", config.AppSlug, config.Version, cfg.Core.SiteURL)),
		license.WithMetrics(metrics),
	)

	caps := host.Capabilities{cliUser: {host.CapabilityManageShopSettings}}
	for _, a := range cfg.Server.Admins {
		caps[a.Username] = []string{host.CapabilityManageShopSettings}
	}

	loader, err := extensions.NewLoader(extensions.ProductsFromConfig(cfg.License.Products), license.Dependencies{
		Store:      store,
		Remote:     remote,
		Authorizer: caps,
		Tokens:     tokens,
		Site:       host.StaticSite{Home: cfg.Core.SiteURL, Admin: cfg.Core.AdminURL},
		Updates:    updaters,
		Updaters:   updaters,
		Metrics:    metrics,
		APIURL:     cfg.License.APIURL,
		Author:     cfg.Core.Author,
		AdminPage:  cfg.Core.AdminPage,
	})
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Config:   cfg,
		Store:    store,
		Updaters: updaters,
		Tokens:   tokens,
		Registry: registry,
		Loader:   loader,
	}, nil
}

// Close releases the settings store.
func (r *Runtime) Close() error {
	return r.Store.Close()
}

// cliRequest builds a request from the terminal user carrying a fresh
// nonce for shortName.
func (r *Runtime) cliRequest(shortName string, form url.Values) (*host.Request, error) {
	token, err := r.Tokens.Issue(license.NonceField(shortName), cliUser)
	if err != nil {
		return nil, err
	}
	if form == nil {
		form = url.Values{}
	}
	form.Set(license.NonceField(shortName), token)
	return host.NewRequest(cliUser, form, nil), nil
}

// outcomeError turns the silent failure branches into command errors.
func outcomeError(outcome license.Outcome) error {
	switch outcome {
	case license.OutcomeTransportFailed:
		return errors.New("the licensing server could not be reached")
	case license.OutcomeUnauthorized:
		return errors.New("the request was not authorized")
	default:
		return nil
	}
}
