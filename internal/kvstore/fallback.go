package kvstore

import (
	"fmt"

	"ccfallback/internal/logger"
)

// Config selects and configures the persistence backend.
type Config struct {
	Driver string // "sqlite" (default) or "postgres"
	DSN    string
}

// New opens a Store per config.Driver.
func New(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "sqlite", "sqlite3":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported kv store driver: %s", cfg.Driver)
	}
}

// NewWithFallback attempts Postgres first when requested, falling back to
// SQLite if the connection fails, mirroring the teacher's
// db.NewWithFallback — useful when Postgres may not be ready at startup.
func NewWithFallback(cfg Config) (store Store, driverUsed string, err error) {
	log := logger.WithComponent("kvstore")

	if cfg.Driver == "postgres" || cfg.Driver == "postgresql" {
		pg, pgErr := NewPostgres(cfg.DSN)
		if pgErr == nil {
			return pg, "postgres", nil
		}
		log.Warn("postgres kv store connection failed, falling back to sqlite", "error", pgErr.Error())

		sq, sqErr := NewSQLite("ccfallback_fallback.db")
		if sqErr != nil {
			return nil, "", fmt.Errorf("both postgres and sqlite fallback failed: %w", sqErr)
		}
		return sq, "sqlite", nil
	}

	s, openErr := New(cfg)
	if openErr != nil {
		return nil, "", openErr
	}
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	return s, driver, nil
}
