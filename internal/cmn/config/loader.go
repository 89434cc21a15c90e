package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigLoader reads and merges configuration from various sources.
type ConfigLoader struct {
	v          *viper.Viper
	configFile string
	envFile    string
	appHomeDir string
	warnings   []string
}

// ConfigLoaderOption defines a functional option for configuring a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile sets the configuration file path.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// WithEnvFile sets a dotenv file that is loaded before environment bindings
// are resolved. A missing file is ignored.
func WithEnvFile(envFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.envFile = envFile
	}
}

// WithAppHomeDir puts the config and data directories under dir instead of
// the XDG locations.
func WithAppHomeDir(dir string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.appHomeDir = dir
	}
}

// NewConfigLoader creates a ConfigLoader with the given viper instance and options.
func NewConfigLoader(v *viper.Viper, options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{v: v}
	for _, opt := range options {
		opt(loader)
	}
	return loader
}

// Load is a shortcut for NewConfigLoader(viper.New(), options...).Load().
func Load(options ...ConfigLoaderOption) (*Config, error) {
	return NewConfigLoader(viper.New(), options...).Load()
}

// Load reads configuration files, applies defaults and environment overrides,
// and returns a validated Config instance.
func (l *ConfigLoader) Load() (*Config, error) {
	if err := l.loadEnvFile(); err != nil {
		return nil, err
	}

	paths := l.resolvePaths()
	l.configureViper(paths.ConfigDir)
	l.bindEnvironmentVariables()
	l.setViperDefaultValues(paths)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var def Definition
	if err := l.v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg := l.buildConfig(def, paths)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.Paths.ConfigFileUsed = l.v.ConfigFileUsed()
	cfg.Warnings = l.warnings
	return cfg, nil
}

func (l *ConfigLoader) loadEnvFile() error {
	if l.envFile == "" {
		return nil
	}
	if err := godotenv.Load(l.envFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", l.envFile, err)
	}
	return nil
}

func (l *ConfigLoader) resolvePaths() Paths {
	if l.appHomeDir != "" {
		home, err := filepath.Abs(l.appHomeDir)
		if err != nil {
			home = l.appHomeDir
		}
		return Paths{ConfigDir: home, DataDir: filepath.Join(home, "data")}
	}
	return Paths{
		ConfigDir: filepath.Join(xdg.ConfigHome, AppSlug),
		DataDir:   filepath.Join(xdg.DataHome, AppSlug),
	}
}

func (l *ConfigLoader) buildConfig(def Definition, paths Paths) *Config {
	cfg := &Config{
		Core: Core{
			Debug:     def.Debug,
			LogFormat: def.LogFormat,
			SiteURL:   def.SiteURL,
			AdminURL:  def.AdminURL,
			AdminPage: def.AdminPage,
			Author:    def.Author,
		},
		License: License{
			APIURL:             def.License.APIURL,
			Timeout:            l.parseDuration("license.timeout", def.License.Timeout),
			InsecureSkipVerify: def.License.InsecureSkipVerify,
		},
		Updater: Updater{
			CacheTTL: l.parseDuration("updater.cache_ttl", def.Updater.CacheTTL),
		},
		Settings: Settings{
			Backend:  SettingsBackend(strings.ToLower(strings.TrimSpace(def.Settings.Backend))),
			Dir:      def.Settings.Dir,
			DSN:      def.Settings.DSN,
			RedisURL: def.Settings.RedisURL,
		},
		Server: Server{
			Host:        def.Server.Host,
			Port:        def.Server.Port,
			NonceSecret: def.Server.NonceSecret,
		},
		Scheduler: Scheduler{
			Enabled:     def.Scheduler.Enabled,
			WeeklyCheck: def.Scheduler.WeeklyCheck,
		},
		Paths: paths,
	}

	for _, p := range def.License.Products {
		cfg.License.Products = append(cfg.License.Products, Product{
			Name:    strings.TrimSpace(p.Name),
			Version: p.Version,
			File:    p.File,
		})
	}
	for _, a := range def.Server.Admins {
		cfg.Server.Admins = append(cfg.Server.Admins, AdminUser{
			Username:     a.Username,
			PasswordHash: a.PasswordHash,
		})
	}

	if cfg.License.Timeout <= 0 {
		cfg.License.Timeout = defaultLicenseTimeout
	}
	if cfg.Updater.CacheTTL <= 0 {
		cfg.Updater.CacheTTL = defaultUpdateCacheTTL
	}
	if cfg.Server.NonceSecret == "" {
		l.warnings = append(l.warnings, "server.nonce_secret is not set; nonces will not survive a restart")
	}
	if cfg.License.InsecureSkipVerify {
		l.warnings = append(l.warnings, "license.insecure_skip_verify is enabled; TLS certificates of the licensing server are not verified")
	}

	return cfg
}

// parseDuration parses a duration string, returning zero and adding a warning if invalid.
func (l *ConfigLoader) parseDuration(fieldName, value string) time.Duration {
	if value == "" {
		return 0
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("Invalid %s value: %s", fieldName, value))
		return 0
	}
	return d
}

const (
	defaultAPIURL         = "https://sellcomet.com/edd-sl-api/"
	defaultLicenseTimeout = 15 * time.Second
	defaultUpdateCacheTTL = 3 * time.Hour
)

func (l *ConfigLoader) setViperDefaultValues(paths Paths) {
	// Core
	l.v.SetDefault("debug", false)
	l.v.SetDefault("log_format", "text")
	l.v.SetDefault("site_url", "http://localhost")
	l.v.SetDefault("admin_url", "http://localhost/wp-admin/")
	l.v.SetDefault("admin_page", "sellcomet")
	l.v.SetDefault("author", "Sell Comet")

	// License
	l.v.SetDefault("license.api_url", defaultAPIURL)
	l.v.SetDefault("license.timeout", defaultLicenseTimeout.String())
	l.v.SetDefault("license.insecure_skip_verify", false)

	// Updater
	l.v.SetDefault("updater.cache_ttl", defaultUpdateCacheTTL.String())

	// Settings
	l.v.SetDefault("settings.backend", string(SettingsBackendFile))
	l.v.SetDefault("settings.dir", filepath.Join(paths.DataDir, "settings"))

	// Server
	l.v.SetDefault("server.host", "127.0.0.1")
	l.v.SetDefault("server.port", 8080)

	// Scheduler
	l.v.SetDefault("scheduler.enabled", true)
	l.v.SetDefault("scheduler.weekly_check", "@weekly")
}

type envBinding struct {
	key    string
	env    string
	isPath bool
}

var envBindings = []envBinding{
	// Core
	{key: "debug", env: "DEBUG"},
	{key: "log_format", env: "LOG_FORMAT"},
	{key: "site_url", env: "SITE_URL"},
	{key: "admin_url", env: "ADMIN_URL"},
	{key: "admin_page", env: "ADMIN_PAGE"},
	{key: "author", env: "AUTHOR"},

	// License
	{key: "license.api_url", env: "LICENSE_API_URL"},
	{key: "license.timeout", env: "LICENSE_TIMEOUT"},
	{key: "license.insecure_skip_verify", env: "LICENSE_INSECURE_SKIP_VERIFY"},

	// Updater
	{key: "updater.cache_ttl", env: "UPDATER_CACHE_TTL"},

	// Settings
	{key: "settings.backend", env: "SETTINGS_BACKEND"},
	{key: "settings.dir", env: "SETTINGS_DIR", isPath: true},
	{key: "settings.dsn", env: "SETTINGS_DSN"},
	{key: "settings.redis_url", env: "SETTINGS_REDIS_URL"},

	// Server
	{key: "server.host", env: "HOST"},
	{key: "server.port", env: "PORT"},
	{key: "server.nonce_secret", env: "NONCE_SECRET"},

	// Scheduler
	{key: "scheduler.enabled", env: "SCHEDULER_ENABLED"},
	{key: "scheduler.weekly_check", env: "SCHEDULER_WEEKLY_CHECK"},
}

func (l *ConfigLoader) bindEnvironmentVariables() {
	prefix := strings.ToUpper(AppSlug) + "_"

	for _, b := range envBindings {
		fullEnv := prefix + b.env

		if b.isPath {
			if val := os.Getenv(fullEnv); val != "" {
				if abs, err := filepath.Abs(val); err == nil && abs != val {
					_ = os.Setenv(fullEnv, abs)
				}
			}
		}

		_ = l.v.BindEnv(b.key, fullEnv)
	}
}

func (l *ConfigLoader) configureViper(configDir string) {
	if l.configFile == "" {
		l.v.AddConfigPath(configDir)
		l.v.SetConfigName("config")
	} else {
		l.v.SetConfigFile(l.configFile)
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(strings.ToUpper(AppSlug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
}
