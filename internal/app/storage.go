package app

import (
	"context"
	"fmt"

	"github.com/startupsquad-prog/company-os-sub003/internal/platform/db"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage/memory"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage/postgres"
)

// OpenStore returns the store selected by STORAGE_DRIVER and a function
// releasing its resources.
func OpenStore(ctx context.Context, cfg *Config) (storage.Store, func(), error) {
	switch cfg.StorageDriver {
	case StorageMemory:
		return memory.New(), func() {}, nil
	case StoragePostgres, "":
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{
			MaxConns:        cfg.PGMaxConns,
			MaxConnLifetime: cfg.PGMaxConnLifetime,
		})
		if err != nil {
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown storage driver %q", cfg.StorageDriver)
	}
}
