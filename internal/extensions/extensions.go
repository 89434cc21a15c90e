// Package extensions loads the license clients of every configured product
// and binds their callbacks to a hook registry.
package extensions

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sellcomet/eddlicense/internal/cmn/config"
	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
	"github.com/sellcomet/eddlicense/internal/host"
	"github.com/sellcomet/eddlicense/internal/license"
)

// Loader builds a fresh set of clients on every Load. A client reads its
// stored key only when constructed, so each request gets its own set.
type Loader struct {
	products []license.Product
	deps     license.Dependencies
}

// NewLoader rejects products whose identities collide.
func NewLoader(products []license.Product, deps license.Dependencies) (*Loader, error) {
	seen := make(map[string]string, len(products))
	for _, p := range products {
		id := license.ShortName(p.Name)
		if other, ok := seen[id]; ok {
			return nil, fmt.Errorf("products %q and %q share the identity %q", other, p.Name, id)
		}
		seen[id] = p.Name
	}
	return &Loader{products: slices.Clone(products), deps: deps}, nil
}

// Products returns the configured products.
func (l *Loader) Products() []license.Product {
	return slices.Clone(l.products)
}

// Set is the result of one Load.
type Set struct {
	Registry *host.Registry
	Clients  []*license.Client
}

// Load constructs every client and registers its hooks on a new registry.
func (l *Loader) Load(ctx context.Context) (*Set, error) {
	set := &Set{Registry: host.NewRegistry()}
	for _, p := range l.products {
		c, err := license.New(ctx, p, l.deps)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", p.Name, err)
		}
		c.Register(set.Registry)
		set.Clients = append(set.Clients, c)
	}
	logger.Debug(ctx, "Loaded licensed extensions", tag.Count(len(set.Clients)))
	return set, nil
}

// Client returns the client with the given identity.
func (s *Set) Client(shortName string) (*license.Client, bool) {
	for _, c := range s.Clients {
		if c.ShortName() == shortName {
			return c, true
		}
	}
	return nil, false
}

// Lookup finds a client by identity or by item name.
func (s *Set) Lookup(name string) (*license.Client, error) {
	if c, ok := s.Client(name); ok {
		return c, nil
	}
	if c, ok := s.Client(license.ShortName(name)); ok {
		return c, nil
	}
	names := make([]string, 0, len(s.Clients))
	for _, c := range s.Clients {
		names = append(names, c.ShortName())
	}
	return nil, fmt.Errorf("unknown product %q (configured: %s)", name, strings.Join(names, ", "))
}

// ProductsFromConfig converts configured products.
func ProductsFromConfig(products []config.Product) []license.Product {
	out := make([]license.Product, 0, len(products))
	for _, p := range products {
		out = append(out, license.Product{Name: p.Name, Version: p.Version, File: p.File})
	}
	return out
}
