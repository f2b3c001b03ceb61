package store

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/pokerub/internal/config"
)

// Open builds the Store selected by cfg.Driver. Server addresses are read from
// the environment variables named by cfg.AddrEnv and cfg.DSNEnv.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger, opts ...Option) (*Store, error) {
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(cfg.Driver, backend, logger, opts...), nil
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	switch cfg.Driver {
	case config.StoreDriverMemory:
		return NewMemoryBackend(), nil

	case config.StoreDriverFile:
		return NewFileBackend(cfg.Path)

	case config.StoreDriverSQLite:
		return OpenSQLite(ctx, cfg.Path)

	case config.StoreDriverRedis:
		addr := os.Getenv(cfg.AddrEnv)
		if addr == "" {
			return nil, fmt.Errorf("store: %s is not set", cfg.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("store: connect redis %s: %w", addr, err)
		}
		return NewRedisBackend(client, cfg.KeyPrefix), nil

	case config.StoreDriverPostgres:
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("store: %s is not set", cfg.DSNEnv)
		}
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("store: connect postgres: %w", err)
		}
		b := NewPostgresBackend(pool, cfg.KeyPrefix)
		if err := b.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("store: %w", err)
		}
		return b, nil

	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
