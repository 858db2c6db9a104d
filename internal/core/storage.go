package core

import (
	"fmt"

	"coopquality/internal/infra/persistence/memory"
	"coopquality/internal/infra/persistence/postgres"
	"coopquality/internal/infra/persistence/sqlite"
	"coopquality/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and locates the persistent store.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore opens the configured backend. An empty driver means
// sqlite. The returned close function is never nil.
func OpenPersistentStore(cfg StorageConfig, engine *RulesEngine) (domain.PersistentStore, func() error, error) {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	noop := func() error { return nil }
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), noop, nil
	case StorageSQLite:
		s, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case StoragePostgres:
		s, err := postgres.NewStore(cfg.PostgresDSN, engine)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %q", driver)
	}
}
