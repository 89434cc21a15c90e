// Package admin serves the shop admin screens that host the license
// clients: the license settings page, the plugin list and the admin-ajax
// endpoint.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"

	"github.com/sellcomet/eddlicense/internal/cmn/config"
	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
	"github.com/sellcomet/eddlicense/internal/extensions"
	"github.com/sellcomet/eddlicense/internal/host"
	"github.com/sellcomet/eddlicense/internal/license"
	"github.com/sellcomet/eddlicense/internal/updater"
)

const (
	ajaxPath    = "/wp-admin/admin-ajax.php"
	adminPath   = "/wp-admin/admin.php"
	pluginsPath = "/wp-admin/plugins.php"
	metricsPath = "/metrics"

	licensesTab = "licenses"
)

// UpdateLookup finds the update checker registered for an item.
type UpdateLookup interface {
	Get(itemName string) (*updater.Updater, bool)
}

// Server is the admin HTTP host.
type Server struct {
	config   *config.Config
	loader   *extensions.Loader
	tokens   host.TokenIssuer
	admins   map[string][]byte
	gatherer prometheus.Gatherer
	updates  UpdateLookup
	matcher  language.Matcher
	log      logger.Logger

	listener   net.Listener
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithListener serves on a pre-bound listener.
func WithListener(l net.Listener) Option {
	return func(s *Server) {
		s.listener = l
	}
}

// WithMetrics exposes g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithUpdates shows available updates on the plugin list.
func WithUpdates(u UpdateLookup) Option {
	return func(s *Server) {
		s.updates = u
	}
}

// New returns a server for the configured admins.
func New(ctx context.Context, cfg *config.Config, loader *extensions.Loader, tokens host.TokenIssuer, opts ...Option) *Server {
	admins := make(map[string][]byte, len(cfg.Server.Admins))
	for _, a := range cfg.Server.Admins {
		admins[a.Username] = []byte(a.PasswordHash)
	}
	s := &Server{
		config:  cfg,
		loader:  loader,
		tokens:  tokens,
		admins:  admins,
		matcher: language.NewMatcher(license.SupportedLanguages),
		log:     logger.FromContext(ctx),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	requestLogger := httplog.NewLogger("http", httplog.Options{
		LogLevel:         slog.LevelDebug,
		JSON:             s.config.Core.LogFormat == "json",
		Concise:          true,
		MessageFieldName: "msg",
	})

	r := chi.NewMux()
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(requestLogger, []string{metricsPath}))
	r.Use(middleware.Recoverer)
	r.Use(s.withLogger)
	if origin := siteOrigin(s.config.Core.SiteURL); origin != "" {
		// Shop pages call admin-ajax from the site origin.
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{origin},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.basicAuth)
		r.Post(ajaxPath, s.handleAjax)
		r.Get(adminPath, s.handleAdminPage)
		r.Post(adminPath, s.handleSettingsSave)
		r.Get(pluginsPath, s.handlePlugins)
	})

	if s.gatherer != nil {
		r.Handle(metricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logger.WithLogger(r.Context(), s.log)))
	})
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		WriteTimeout:      60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.Info(ctx, "Server is starting", tag.Addr(addr))

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.listener != nil {
			err = s.httpServer.Serve(s.listener)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			logger.Error(ctx, "Server failed to start or unexpected shutdown", tag.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info(ctx, "Context done, shutting down server")
	}
	return s.Shutdown(context.WithoutCancel(ctx))
}

// Shutdown stops the server, waiting up to 10 seconds for requests to end.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	logger.Info(ctx, "Server is shutting down", tag.Addr(s.httpServer.Addr))

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	s.httpServer.SetKeepAlivesEnabled(false)
	return s.httpServer.Shutdown(shutdownCtx)
}

// language picks the best supported language for the request.
func (s *Server) language(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return license.SupportedLanguages[0]
	}
	_, idx, confidence := s.matcher.Match(tags...)
	if confidence == language.No {
		return license.SupportedLanguages[0]
	}
	return license.SupportedLanguages[idx]
}

// siteOrigin returns the scheme and host of siteURL.
func siteOrigin(siteURL string) string {
	u, err := url.Parse(siteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
