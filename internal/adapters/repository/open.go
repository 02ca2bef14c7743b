package repository

import (
	"context"
	"fmt"
)

// Open returns the backend named by driver. dsn is a file path or ":memory:"
// for sqlite, a connection string for postgres, and a redis:// URL for redis.
// The memory driver ignores dsn.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (ReadWriteStore, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		s, err := OpenSQL(ctx, driver, dsn, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverRedis:
		s, err := OpenRedis(ctx, dsn, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
}
