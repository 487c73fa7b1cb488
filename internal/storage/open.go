package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"sheets/internal/domain"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMySQL    Backend = "mysql"
	BackendRedis    Backend = "redis"
	BackendMongo    Backend = "mongo"
)

// Options selects and locates the key-value backend.
type Options struct {
	Backend  Backend
	DataDir  string
	DSN      string // sqlite path or SQL connection string
	Conn     ConnParams
	RedisURL string
	MongoURI string
	MongoDB  string
}

// OpenKV opens the configured backend.
func OpenKV(ctx context.Context, opts Options) (domain.KVStore, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryKV(), nil
	case BackendSQLite, "":
		path := opts.DSN
		if path == "" {
			path = filepath.Join(opts.DataDir, "sheets.db")
		}
		db, err := New(path)
		if err != nil {
			return nil, err
		}
		return NewSQLKV(db), nil
	case BackendPostgres, BackendMySQL:
		dialect := Dialect(opts.Backend)
		dsn := opts.DSN
		if dsn == "" {
			var err error
			if dsn, err = BuildDSN(dialect, opts.Conn); err != nil {
				return nil, err
			}
		}
		db, err := Open(dialect, dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLKV(db), nil
	case BackendRedis:
		return NewRedisKV(ctx, opts.RedisURL)
	case BackendMongo:
		db := opts.MongoDB
		if db == "" {
			db = "sheets"
		}
		return NewMongoKV(ctx, opts.MongoURI, db)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", opts.Backend)
	}
}
