// Package store selects the core.Store backend named by DATABASE_URL.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/supplysync/internal/config"
	"github.com/JonMunkholm/supplysync/internal/core"
	"github.com/JonMunkholm/supplysync/internal/store/memory"
	"github.com/JonMunkholm/supplysync/internal/store/postgres"
	"github.com/JonMunkholm/supplysync/internal/store/sqlite"
)

// Backend is a core.Store that also manages locations and owns resources.
type Backend interface {
	core.Store
	UpsertLocation(ctx context.Context, id, name string, active bool) error
	Close() error
}

var (
	_ Backend = (*memory.Store)(nil)
	_ Backend = (*postgres.Store)(nil)
	_ Backend = (*sqlite.Store)(nil)
)

// Open connects to the backend for cfg.URL, migrating the schema when
// cfg.Migrate is set.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Backend, error) {
	switch driver := cfg.Driver(); driver {
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				pool.Close()
				return nil, err
			}
		}
		slog.Info("store opened", "driver", driver)
		return postgres.NewStore(pool), nil

	case "sqlite":
		path := SQLitePath(cfg.URL)
		db, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := sqlite.Migrate(db); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		slog.Info("store opened", "driver", driver, "path", path)
		return sqlite.New(db), nil

	case "memory":
		slog.Warn("using in-memory store, nothing will be persisted")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", cfg.URL)
	}
}

// SQLitePath converts a sqlite:// URL to a go-sqlite3 data source name.
// The scheme is matched case-insensitively; file: URIs are passed through.
func SQLitePath(url string) string {
	url = strings.TrimSpace(url)
	const scheme = "sqlite://"
	if len(url) >= len(scheme) && strings.EqualFold(url[:len(scheme)], scheme) {
		return url[len(scheme):]
	}
	return url
}
