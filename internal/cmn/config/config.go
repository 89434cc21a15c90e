package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config holds the overall configuration for the application.
type Config struct {
	Core      Core
	License   License
	Updater   Updater
	Settings  Settings
	Server    Server
	Scheduler Scheduler
	Paths     Paths
	Warnings  []string
}

// Core holds settings shared by every command.
type Core struct {
	Debug     bool
	LogFormat string
	// SiteURL is the public home URL reported to the licensing server.
	SiteURL string
	// AdminURL is the base of the admin area, e.g. https://shop.example.com/wp-admin/
	AdminURL string
	// AdminPage is the page slug of the license management screen.
	AdminPage string
	Author    string
}

// License holds the remote licensing endpoint and the licensed products.
type License struct {
	APIURL  string
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification for the
	// licensing endpoint. Off unless explicitly configured.
	InsecureSkipVerify bool
	Products           []Product
}

// Product is one licensed extension.
type Product struct {
	Name    string
	Version string
	File    string
}

// Updater holds the update-check collaborator settings.
type Updater struct {
	CacheTTL time.Duration
}

// SettingsBackend names a settings store implementation.
type SettingsBackend string

const (
	SettingsBackendFile     SettingsBackend = "file"
	SettingsBackendSQLite   SettingsBackend = "sqlite"
	SettingsBackendPostgres SettingsBackend = "postgres"
	SettingsBackendRedis    SettingsBackend = "redis"
)

// Settings selects and configures the persisted key-value store.
type Settings struct {
	Backend  SettingsBackend
	Dir      string
	DSN      string
	RedisURL string
}

// Server holds the admin HTTP server settings.
type Server struct {
	Host        string
	Port        int
	NonceSecret string
	Admins      []AdminUser
}

// AdminUser is a basic-auth user allowed to manage shop settings.
type AdminUser struct {
	Username string
	// PasswordHash is a bcrypt hash of the password.
	PasswordHash string
}

// Scheduler holds the recurring license check settings.
type Scheduler struct {
	Enabled     bool
	WeeklyCheck string
}

// Paths holds resolved directories.
type Paths struct {
	ConfigDir      string
	DataDir        string
	ConfigFileUsed string
}

// Validate checks the configuration for obviously broken values.
func (c *Config) Validate() error {
	if err := c.validateLicense(); err != nil {
		return err
	}
	if err := c.validateSettings(); err != nil {
		return err
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port number: %d", c.Server.Port)
	}
	for i, a := range c.Server.Admins {
		if a.Username == "" || a.PasswordHash == "" {
			return fmt.Errorf("server.admins[%d]: username and password_hash are required", i)
		}
		if _, err := bcrypt.Cost([]byte(a.PasswordHash)); err != nil {
			return fmt.Errorf("server.admins[%d]: password_hash is not a bcrypt hash: %w", i, err)
		}
	}
	return nil
}

func (c *Config) validateLicense() error {
	u, err := url.Parse(c.License.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid license.api_url: %q", c.License.APIURL)
	}
	if c.License.Timeout <= 0 {
		return fmt.Errorf("license.timeout must be positive")
	}
	for i, p := range c.License.Products {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("license.products[%d]: name is required", i)
		}
	}
	return nil
}

func (c *Config) validateSettings() error {
	switch c.Settings.Backend {
	case SettingsBackendFile:
		if c.Settings.Dir == "" {
			return fmt.Errorf("settings.dir is required for the file backend")
		}
	case SettingsBackendSQLite, SettingsBackendPostgres:
		if c.Settings.DSN == "" {
			return fmt.Errorf("settings.dsn is required for the %s backend", c.Settings.Backend)
		}
	case SettingsBackendRedis:
		if c.Settings.RedisURL == "" {
			return fmt.Errorf("settings.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid settings.backend: %q (must be one of: file, sqlite, postgres, redis)", c.Settings.Backend)
	}
	return nil
}

// AdminPageURL returns the absolute URL of the license management screen.
func (c *Config) AdminPageURL() string {
	return strings.TrimRight(c.Core.AdminURL, "/") + "/admin.php?page=" + url.QueryEscape(c.Core.AdminPage)
}
