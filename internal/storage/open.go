package storage

import (
	"context"
	"fmt"

	"bonaparks/internal/infra"
)

// OpenKV connects the backend selected by cfg.KVBackend.
func OpenKV(ctx context.Context, cfg *infra.Config) (KV, error) {
	switch cfg.KVBackend {
	case "", "memory":
		return NewMemoryKV(), nil
	case "sqlite":
		return OpenSQLiteKV(ctx, cfg.SQLitePath)
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		kv, err := NewPostgresKV(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return kv, nil
	case "redis":
		return NewRedisKV(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	}
	return nil, fmt.Errorf("storage: unsupported backend %q", cfg.KVBackend)
}
