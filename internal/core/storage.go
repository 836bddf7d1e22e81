package core

import (
	"context"
	"fmt"
	"os"

	"gencon/internal/infra/persistence/memory"
	"gencon/internal/infra/persistence/postgres"
	"gencon/internal/infra/persistence/sqlite"
	memtracker "gencon/internal/infra/savestate/memory"
	redistracker "gencon/internal/infra/savestate/redis"
	"gencon/pkg/domain"
)

// StorageDriver identifies a concrete rollup store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// SaveStateDriver identifies a save tracker implementation.
type SaveStateDriver string

const (
	SaveStateMemory SaveStateDriver = "memory"
	SaveStateRedis  SaveStateDriver = "redis"
)

// OpenRollupStore opens the rollup store for driver. path is the sqlite file
// and dsn the postgres connection string; each is ignored by other drivers.
func OpenRollupStore(ctx context.Context, driver StorageDriver, path, dsn string) (domain.RollupStore, error) {
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite, "":
		return sqlite.NewStore(path)
	case StoragePostgres:
		return postgres.NewStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// OpenRollupStoreFromEnv selects a backend using environment variables.
// Defaults to sqlite when unset.
//
//	GENCON_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	GENCON_SQLITE_PATH: path to sqlite file (default ./gencon.db)
//	GENCON_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenRollupStoreFromEnv(ctx context.Context) (domain.RollupStore, error) {
	return OpenRollupStore(ctx,
		StorageDriver(os.Getenv("GENCON_STORAGE_DRIVER")),
		os.Getenv("GENCON_SQLITE_PATH"),
		os.Getenv("GENCON_POSTGRES_DSN"),
	)
}

// OpenSaveTracker opens the save tracker for driver.
func OpenSaveTracker(ctx context.Context, driver SaveStateDriver, redisURL, prefix string) (domain.SaveTracker, error) {
	switch driver {
	case SaveStateMemory, "":
		return memtracker.NewTracker(), nil
	case SaveStateRedis:
		return redistracker.NewTracker(ctx, redisURL, prefix)
	default:
		return nil, fmt.Errorf("unknown save state driver %s", driver)
	}
}
