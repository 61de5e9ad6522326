package core

import (
	"context"
	"fmt"
	"io"

	"unitofwork/internal/config"
	"unitofwork/internal/infra/persistence/memory"
	"unitofwork/internal/infra/persistence/postgres"
	"unitofwork/internal/infra/persistence/sqlite"
	"unitofwork/pkg/domain"
)

// StorageDriver identifies a concrete StorageProvider implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenStorage selects a StorageProvider from configuration. Defaults to
// memory when the driver is unset.
//
//	UOW_STORAGE_DRIVER: memory|sqlite|postgres
//	UOW_SQLITE_PATH: path to sqlite file (default ./unitofwork.db)
//	UOW_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenStorage(ctx context.Context, cfg config.StorageConfig) (domain.StorageProvider, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = string(StorageMemory)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// CloseStorage releases the resources held by storage, if any.
func CloseStorage(storage domain.StorageProvider) error {
	if c, ok := storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
