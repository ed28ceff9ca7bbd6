// Package storage opens the configured persistence backend.
package storage

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"antygravity/internal/adapters/postgres"
	"antygravity/internal/adapters/sqlstore"
	"antygravity/internal/ports"
)

// Backend names accepted by Open.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
	MySQL    = "mysql"
)

// Store is a ports.Store that can also migrate its own schema.
type Store interface {
	ports.Store
	Migrate(ctx context.Context) error
	Provider() (*goose.Provider, error)
}

var (
	_ Store = (*postgres.DB)(nil)
	_ Store = (*sqlstore.Store)(nil)
)

func Open(ctx context.Context, backend, url string) (Store, error) {
	switch backend {
	case Postgres, "":
		if url == "" {
			return nil, fmt.Errorf("storage: database url is required for postgres")
		}
		db, err := postgres.Connect(ctx, url)
		if err != nil {
			return nil, err
		}
		return db, nil
	case SQLite, MySQL:
		s, err := sqlstore.Open(ctx, sqlstore.Dialect(backend), url)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("storage: unknown backend %q", backend)
}
