package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS pokerub_kv (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresBackend stores keys in the pokerub_kv table using pgx/v5. Keys are
// namespaced by prefix so several deployments can share one table.
type PostgresBackend struct {
	pool   *pgxpool.Pool
	prefix string
}

// NewPostgresBackend creates a PostgreSQL backend over pool.
func NewPostgresBackend(pool *pgxpool.Pool, prefix string) *PostgresBackend {
	return &PostgresBackend{pool: pool, prefix: prefix}
}

// EnsureSchema creates the kv table if it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	if _, err := b.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

// Get returns the value under key.
func (b *PostgresBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := b.pool.QueryRow(ctx,
		`SELECT value FROM pokerub_kv WHERE key = $1`, b.prefix+key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query kv: %w", err)
	}
	return value, true, nil
}

// Set upserts key.
func (b *PostgresBackend) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.pool.Exec(ctx, `
		INSERT INTO pokerub_kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		b.prefix+key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}

// Remove deletes key.
func (b *PostgresBackend) Remove(ctx context.Context, key string) error {
	if _, err := b.pool.Exec(ctx, `DELETE FROM pokerub_kv WHERE key = $1`, b.prefix+key); err != nil {
		return fmt.Errorf("delete kv: %w", err)
	}
	return nil
}

// Clear deletes every key under the prefix.
func (b *PostgresBackend) Clear(ctx context.Context) error {
	_, err := b.pool.Exec(ctx, `DELETE FROM pokerub_kv WHERE key LIKE $1 ESCAPE '\'`, likePrefix(b.prefix))
	if err != nil {
		return fmt.Errorf("clear kv: %w", err)
	}
	return nil
}

// HealthCheck pings the pool.
func (b *PostgresBackend) HealthCheck(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

func (b *PostgresBackend) Close() error {
	b.pool.Close()
	return nil
}

func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}
