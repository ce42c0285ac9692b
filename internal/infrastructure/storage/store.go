package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
)

// Store is a backend holding both orders and positions.
type Store interface {
	domain.OrderRepository
	domain.PositionRepository
	Close() error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// NormalizeDriver maps a configured driver name, including its aliases, to
// one of "sqlite", "postgres" or "memory". An empty name means sqlite.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql", "pgx":
		return "postgres", nil
	case "memory":
		return "memory", nil
	}
	return "", fmt.Errorf("unknown storage driver %q", driver)
}

// Open returns the backend named by driver (see NormalizeDriver).
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	name, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}

	switch name {
	case "postgres":
		return NewPostgresStore(ctx, dsn)
	case "memory":
		return NewMemoryStore(), nil
	}
	if dsn == "" {
		dsn = "ledger.db"
	}
	return NewSQLiteStore(dsn)
}
