// Package license keeps the license of one licensed extension in sync with
// the licensing server: activation and deactivation from the admin screen,
// the weekly status check, update-checker arguments and admin notices.
package license

import (
	"context"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
	"github.com/sellcomet/eddlicense/internal/host"
	"github.com/sellcomet/eddlicense/internal/updater"
)

// Outcome names the branch an operation took.
type Outcome string

const (
	OutcomeUnauthorized       Outcome = "unauthorized"
	OutcomeCleared            Outcome = "cleared"
	OutcomeDeactivationIntent Outcome = "deactivation-intent"
	OutcomeAlreadyValid       Outcome = "already-valid"
	OutcomeNoKey              Outcome = "no-key"
	OutcomeTransportFailed    Outcome = "transport-failed"
	OutcomeActivated          Outcome = "activated"
	OutcomeDeactivated        Outcome = "deactivated"
	OutcomeChecked            Outcome = "checked"
)

// UpdaterRegistry receives the update-check arguments of each extension.
type UpdaterRegistry interface {
	Register(ctx context.Context, apiURL string, args updater.Args) error
}

// Product identifies a licensed extension.
type Product struct {
	// File is the plugin file of the extension, used for the updater slug.
	File    string
	Name    string
	Version string
}

// Dependencies are the host services a Client works with.
type Dependencies struct {
	Store      SettingsStore
	Remote     Remote
	Authorizer host.Authorizer
	Tokens     host.TokenVerifier
	Site       host.Site
	Updates    host.UpdateCache
	Updaters   UpdaterRegistry
	Metrics    *Metrics

	// APIURL is handed to the update checker.
	APIURL string
	Author string
	// AdminPage is the page slug of the license management screen.
	AdminPage string
}

// Client manages the license of one product.
type Client struct {
	product   Product
	shortName string
	// license is the key stored when the client was constructed. It is not
	// refreshed after a mutation within the same request.
	license string
	deps    Dependencies
}

// New derives the product identity and loads the stored key. It makes no
// network call.
func New(ctx context.Context, product Product, deps Dependencies) (*Client, error) {
	if strings.TrimSpace(product.Name) == "" {
		return nil, fmt.Errorf("product name is required")
	}
	if deps.Store == nil || deps.Remote == nil || deps.Authorizer == nil || deps.Tokens == nil || deps.Site == nil {
		return nil, fmt.Errorf("store, remote, authorizer, tokens and site are required")
	}
	if deps.AdminPage == "" {
		deps.AdminPage = "sellcomet"
	}

	c := &Client{
		product:   product,
		shortName: ShortName(product.Name),
		deps:      deps,
	}
	key, err := loadKey(ctx, deps.Store, c.shortName)
	if err != nil {
		return nil, err
	}
	c.license = strings.TrimSpace(key)
	return c, nil
}

// ShortName returns the product identity.
func (c *Client) ShortName() string {
	return c.shortName
}

// ItemName returns the human readable product name.
func (c *Client) ItemName() string {
	return c.product.Name
}

// Version returns the installed product version.
func (c *Client) Version() string {
	return c.product.Version
}

// License returns the key loaded at construction.
func (c *Client) License() string {
	return c.license
}

// Record reads the current persisted record.
func (c *Client) Record(ctx context.Context) (Record, error) {
	return LoadRecord(ctx, c.deps.Store, c.shortName)
}

func (c *Client) logCtx(ctx context.Context) context.Context {
	return logger.WithLogger(ctx, logger.FromContext(ctx).With(tag.Product(c.shortName)))
}

func (c *Client) done(ctx context.Context, operation string, outcome Outcome) Outcome {
	logger.Debug(ctx, "License operation finished", tag.Operation(operation), tag.Outcome(string(outcome)))
	c.deps.Metrics.OperationDone(operation, outcome)
	return outcome
}

// authorized checks the anti-forgery token and the manage capability.
func (c *Client) authorized(ctx context.Context, req *host.Request) bool {
	if req == nil {
		return false
	}
	action := NonceField(c.shortName)
	token := req.Value(action)
	if token == "" || !c.deps.Tokens.Verify(token, action, req.User) {
		logger.Debug(ctx, "Rejected license request with missing or invalid nonce", tag.User(req.User))
		return false
	}
	if !c.deps.Authorizer.Can(ctx, req.User, host.CapabilityManageShopSettings) {
		logger.Debug(ctx, "Rejected license request without capability", tag.User(req.User))
		return false
	}
	return true
}

// ActivateLicense activates the submitted key. On success the server answer
// is stored and written as the request output, which terminates the request.
// Authorization and transport failures are silent no-ops.
func (c *Client) ActivateLicense(ctx context.Context, req *host.Request) (Outcome, error) {
	ctx = c.logCtx(ctx)
	const op = "activate"

	if !c.authorized(ctx, req) {
		return c.done(ctx, op, OutcomeUnauthorized), nil
	}

	raw := req.PostValue(KeyField(c.shortName))
	if raw == "" || raw == "0" {
		if err := deleteField(ctx, c.deps.Store, c.shortName, fieldDetails); err != nil {
			return "", err
		}
		return c.done(ctx, op, OutcomeCleared), nil
	}

	for _, name := range req.PostFieldNames() {
		if strings.Contains(name, deactivateIntent) {
			return c.done(ctx, op, OutcomeDeactivationIntent), nil
		}
	}

	details, err := loadDetails(ctx, c.deps.Store, c.shortName)
	if err != nil {
		return "", err
	}
	if details.IsValid() {
		return c.done(ctx, op, OutcomeAlreadyValid), nil
	}

	license := sanitizeText(raw)
	if license == "" {
		return c.done(ctx, op, OutcomeNoKey), nil
	}

	answer, err := c.call(ctx, ActionActivate, license)
	if err != nil {
		return c.done(ctx, op, OutcomeTransportFailed), nil
	}

	if c.deps.Updates != nil {
		if err := c.deps.Updates.Invalidate(ctx); err != nil {
			logger.Warn(ctx, "Failed to invalidate update cache", tag.Error(err))
		}
	}
	if err := saveKey(ctx, c.deps.Store, c.shortName, license); err != nil {
		return "", err
	}
	if err := saveDetails(ctx, c.deps.Store, c.shortName, answer); err != nil {
		return "", err
	}

	logger.Info(ctx, "License activated", tag.Status(answer.Status()))
	if err := req.SendJSON(answer); err != nil {
		return "", err
	}
	return c.done(ctx, op, OutcomeActivated), nil
}

// DeactivateLicense deactivates the stored key. On a successful round trip
// key and details are removed whatever the server reported, and the answer
// becomes the request output.
func (c *Client) DeactivateLicense(ctx context.Context, req *host.Request) (Outcome, error) {
	ctx = c.logCtx(ctx)
	const op = "deactivate"

	if !c.authorized(ctx, req) {
		return c.done(ctx, op, OutcomeUnauthorized), nil
	}

	answer, err := c.call(ctx, ActionDeactivate, c.license)
	if err != nil {
		return c.done(ctx, op, OutcomeTransportFailed), nil
	}

	if err := deleteField(ctx, c.deps.Store, c.shortName, fieldKey); err != nil {
		return "", err
	}
	if err := deleteField(ctx, c.deps.Store, c.shortName, fieldDetails); err != nil {
		return "", err
	}

	logger.Info(ctx, "License deactivated", tag.Status(answer.Status()))
	if err := req.SendJSON(answer); err != nil {
		return "", err
	}
	return c.done(ctx, op, OutcomeDeactivated), nil
}

// WeeklyLicenseCheck refreshes the stored details from the server. The key
// is left untouched.
func (c *Client) WeeklyLicenseCheck(ctx context.Context) (Outcome, error) {
	ctx = c.logCtx(ctx)
	const op = "check"

	if c.license == "" {
		return c.done(ctx, op, OutcomeNoKey), nil
	}

	answer, err := c.call(ctx, ActionCheck, c.license)
	if err != nil {
		return c.done(ctx, op, OutcomeTransportFailed), nil
	}
	if err := saveDetails(ctx, c.deps.Store, c.shortName, answer); err != nil {
		return "", err
	}

	logger.Info(ctx, "License checked", tag.Status(answer.Status()))
	return c.done(ctx, op, OutcomeChecked), nil
}

func (c *Client) call(ctx context.Context, action Action, license string) (Details, error) {
	answer, err := c.deps.Remote.Call(ctx, RemoteRequest{
		Action:   action,
		License:  license,
		ItemName: c.shortName,
		URL:      c.deps.Site.HomeURL(),
	})
	if err != nil {
		logger.Warn(ctx, "Licensing server request failed", tag.Action(string(action)), tag.Error(err))
		return nil, err
	}
	return answer, nil
}

// UpdaterArgs builds the update-check arguments. The license is only passed
// on when the last known status is valid.
func (c *Client) UpdaterArgs(ctx context.Context) (updater.Args, error) {
	beta, err := HasBetaSupport(ctx, c.deps.Store, c.shortName)
	if err != nil {
		return updater.Args{}, err
	}
	args := updater.Args{
		Version:    c.product.Version,
		License:    c.license,
		Author:     c.deps.Author,
		WPOverride: true,
		Beta:       beta,
		ItemName:   c.shortName,
		File:       c.product.File,
	}

	details, err := loadDetails(ctx, c.deps.Store, c.shortName)
	if err != nil {
		return updater.Args{}, err
	}
	if !details.IsValid() {
		args.License = ""
	}
	return args, nil
}

// AutoUpdater hands the update-check arguments to the updater collaborator.
func (c *Client) AutoUpdater(ctx context.Context) error {
	if c.deps.Updaters == nil {
		return nil
	}
	args, err := c.UpdaterArgs(ctx)
	if err != nil {
		return err
	}
	return c.deps.Updaters.Register(c.logCtx(ctx), c.deps.APIURL, args)
}

func (c *Client) adminPageURL() string {
	return c.deps.Site.AdminURL("admin.php?page=" + c.deps.AdminPage)
}

// Notices renders the invalid-license warning once per page load. Nothing is
// shown without a stored key, without the manage capability or on the
// license screen itself.
func (c *Client) Notices(ctx context.Context, req *host.Request, rc *host.RenderContext, w io.Writer) error {
	if c.license == "" {
		return nil
	}
	if req == nil || !c.deps.Authorizer.Can(ctx, req.User, host.CapabilityManageShopSettings) {
		return nil
	}
	if req.Query.Get("page") == c.deps.AdminPage {
		return nil
	}
	if rc.NoticeShown {
		return nil
	}

	details, err := loadDetails(ctx, c.deps.Store, c.shortName)
	if err != nil {
		return err
	}
	if details.IsValid() {
		return nil
	}

	msg := printer(rc.Language).Sprintf(msgRegister, html.EscapeString(c.adminPageURL()), html.EscapeString(c.product.Name))
	if _, err := fmt.Fprintf(w, `<div class="error"><p>%s</p></div>`, msg); err != nil {
		return err
	}
	rc.NoticeShown = true
	return nil
}

// PluginRowLicenseMissing renders the inline missing-key message on the
// plugin row, once per product per page load.
func (c *Client) PluginRowLicenseMissing(ctx context.Context, rc *host.RenderContext, w io.Writer) error {
	if rc.MissingKeyShown[c.shortName] {
		return nil
	}
	details, err := loadDetails(ctx, c.deps.Store, c.shortName)
	if err != nil {
		return err
	}
	if details.IsValid() {
		return nil
	}

	msg := printer(rc.Language).Sprintf(msgMissing)
	if _, err := fmt.Fprintf(w, `&nbsp;<strong><a href="%s">%s</a></strong>`, html.EscapeString(c.adminPageURL()), msg); err != nil {
		return err
	}
	rc.MarkMissingKey(c.shortName)
	return nil
}

// HelpText renders the renewal help on top of the licenses tab, once per
// page load.
func (c *Client) HelpText(rc *host.RenderContext, activeTab string, w io.Writer) error {
	if activeTab != "licenses" || rc.HelpShown {
		return nil
	}
	msg := printer(rc.Language).Sprintf(msgHelp, RenewalURL)
	if _, err := fmt.Fprintf(w, "<p>%s</p>", msg); err != nil {
		return err
	}
	rc.HelpShown = true
	return nil
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[\s\x00-\x1f]+`)
)

// sanitizeText strips tags and control characters and collapses whitespace.
func sanitizeText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = tagPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
