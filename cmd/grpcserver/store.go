package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/milad/thermo/internal/config"
	"github.com/milad/thermo/internal/repo"
	"github.com/milad/thermo/internal/repo/influxrepo"
	"github.com/milad/thermo/internal/repo/memrepo"
	"github.com/milad/thermo/internal/repo/sqliterepo"
)

type store interface {
	repo.ReadingRepository
	Close() error
}

type memStore struct{ *memrepo.Repo }

func (memStore) Close() error { return nil }

type influxStore struct{ *influxrepo.Repo }

func (s influxStore) Close() error {
	s.Repo.Close()
	return nil
}

func openStore(ctx context.Context, cfg config.Config, loc *time.Location, logger *slog.Logger) (store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		if cfg.CSVPath == "" {
			return memStore{memrepo.New(nil)}, nil
		}
		r, err := memrepo.NewFromFile(cfg.CSVPath, loc)
		if err != nil {
			// A few bad rows (e.g. NaN) are not fatal when the rest loaded.
			logger.Warn("csv seed", "path", cfg.CSVPath, "err", err)
		}
		if r == nil {
			return nil, fmt.Errorf("failed to load csv from %q", cfg.CSVPath)
		}
		logger.Info("memory store seeded", "path", cfg.CSVPath, "readings", r.Len())
		return memStore{r}, nil

	case config.StoreSQLite:
		r, err := sqliterepo.Open(ctx, cfg.SQLitePath, loc)
		if err != nil {
			return nil, err
		}
		return r, nil

	case config.StoreInflux:
		r := influxrepo.New(influxrepo.Config{
			URL:    cfg.InfluxURL,
			Token:  cfg.InfluxToken,
			Org:    cfg.InfluxOrg,
			Bucket: cfg.InfluxBucket,
		}, loc)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.Ping(pingCtx); err != nil {
			// Queries report StorageUnavailable until the server is reachable.
			logger.Warn("influxdb not reachable yet", "url", cfg.InfluxURL, "err", err)
		}
		return influxStore{r}, nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
