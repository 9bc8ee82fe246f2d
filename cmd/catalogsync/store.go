package main

import (
	"context"
	"errors"

	"github.com/persistorai/catalogsync/internal/config"
	"github.com/persistorai/catalogsync/internal/db"
	"github.com/persistorai/catalogsync/internal/dbpool"
	"github.com/persistorai/catalogsync/internal/markerstore"
)

var errNoMarkerStore = errors.New("no marker store configured (MARKER_STORE=none)")

// markerBackend is the configured checkpoint store. pool is set only for
// the postgres store.
type markerBackend struct {
	store markerstore.Store
	pool  *dbpool.Pool
}

func (b *markerBackend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// openMarkerStore builds the store selected by MARKER_STORE. It returns
// errNoMarkerStore for "none".
func openMarkerStore(ctx context.Context, c *config.Config) (*markerBackend, error) {
	switch c.MarkerStore {
	case config.MarkerStorePostgres:
		pool, err := dbpool.NewPool(ctx, c.MarkerDatabaseURL.Value(), c.DBMaxConns)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
		return &markerBackend{store: markerstore.NewPostgres(pool, logger), pool: pool}, nil
	case config.MarkerStoreNone:
		return nil, errNoMarkerStore
	default:
		return &markerBackend{store: markerstore.NewFile(c.MarkerFile, logger)}, nil
	}
}
