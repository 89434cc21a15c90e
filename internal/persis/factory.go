// Package persis opens the persistence backends selected by configuration.
package persis

import (
	"context"
	"fmt"

	"github.com/sellcomet/eddlicense/internal/cmn/config"
	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
	"github.com/sellcomet/eddlicense/internal/license"
	"github.com/sellcomet/eddlicense/internal/persis/filesettings"
	"github.com/sellcomet/eddlicense/internal/persis/fileupdatecache"
	"github.com/sellcomet/eddlicense/internal/persis/redissettings"
	"github.com/sellcomet/eddlicense/internal/persis/sqlsettings"
	"github.com/sellcomet/eddlicense/internal/updater"
)

// SettingsStore is a license.SettingsStore holding a connection.
type SettingsStore interface {
	license.SettingsStore
	Close() error
}

type fileSettings struct {
	*filesettings.Store
}

func (fileSettings) Close() error { return nil }

// OpenSettings opens the settings backend named by cfg.Backend.
func OpenSettings(ctx context.Context, cfg config.Settings) (SettingsStore, error) {
	logger.Debug(ctx, "Opening settings store", tag.Backend(string(cfg.Backend)))

	switch cfg.Backend {
	case config.SettingsBackendFile, "":
		s, err := filesettings.New(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return fileSettings{s}, nil
	case config.SettingsBackendSQLite, config.SettingsBackendPostgres:
		dialect := sqlsettings.DialectSQLite
		if cfg.Backend == config.SettingsBackendPostgres {
			dialect = sqlsettings.DialectPostgres
		}
		s, err := sqlsettings.Open(ctx, dialect, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SettingsBackendRedis:
		s, err := redissettings.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.Backend)
	}
}

// OpenUpdateCache opens the version check cache below dataDir.
func OpenUpdateCache(dataDir string) (updater.CacheStore, error) {
	s, err := fileupdatecache.New(dataDir)
	if err != nil {
		return nil, err
	}
	return s, nil
}
