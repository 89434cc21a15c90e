// Package host describes the admin platform the license client runs inside:
// request input, per page-load render state, event hooks and the collaborator
// services (authorization, anti-forgery tokens, site URLs, update cache).
package host

import (
	"context"
	"slices"
	"strings"
)

// CapabilityManageShopSettings is required to change or view license state.
const CapabilityManageShopSettings = "manage_shop_settings"

// Authorizer answers capability checks for the acting user.
type Authorizer interface {
	Can(ctx context.Context, user, capability string) bool
}

// TokenVerifier verifies anti-forgery tokens bound to an action and a user.
type TokenVerifier interface {
	Verify(token, action, user string) bool
}

// TokenIssuer issues anti-forgery tokens.
type TokenIssuer interface {
	Issue(action, user string) (string, error)
}

// Site exposes the public and admin URLs of the installation.
type Site interface {
	HomeURL() string
	AdminURL(path string) string
}

// UpdateCache is the cached "available updates" signal of the host.
type UpdateCache interface {
	Invalidate(ctx context.Context) error
}

// Capabilities is a static Authorizer mapping users to their capabilities.
type Capabilities map[string][]string

var _ Authorizer = Capabilities(nil)

// Can implements Authorizer.
func (c Capabilities) Can(_ context.Context, user, capability string) bool {
	if user == "" {
		return false
	}
	return slices.Contains(c[user], capability)
}

// StaticSite is a Site with fixed URLs.
type StaticSite struct {
	Home  string
	Admin string
}

var _ Site = StaticSite{}

// HomeURL implements Site.
func (s StaticSite) HomeURL() string {
	return s.Home
}

// AdminURL implements Site. path is appended to the admin base URL.
func (s StaticSite) AdminURL(path string) string {
	return strings.TrimRight(s.Admin, "/") + "/" + strings.TrimLeft(path, "/")
}
