// Package database opens the connection pools behind the remote trip stores.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// PoolOptions sizes a connection pool. A trip store does one read and one
// write per merge, so the defaults are small.
type PoolOptions struct {
	MaxConns    int
	MinIdle     int
	MaxLifetime time.Duration
	DialTimeout time.Duration
}

func (o *PoolOptions) withDefaults() PoolOptions {
	out := PoolOptions{
		MaxConns:    5,
		MinIdle:     1,
		MaxLifetime: time.Hour,
		DialTimeout: 5 * time.Second,
	}
	if o == nil {
		return out
	}
	if o.MaxConns > 0 {
		out.MaxConns = o.MaxConns
	}
	if o.MinIdle >= 0 {
		out.MinIdle = o.MinIdle
	}
	if o.MaxLifetime > 0 {
		out.MaxLifetime = o.MaxLifetime
	}
	if o.DialTimeout > 0 {
		out.DialTimeout = o.DialTimeout
	}
	return out
}

// NewPostgres opens a pgx pool, pings it and exposes it through sqlx.
func NewPostgres(ctx context.Context, databaseURL string, opts *PoolOptions) (*sqlx.DB, error) {
	o := opts.withDefaults()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = int32(o.MaxConns)
	config.MinConns = int32(o.MinIdle)
	config.MaxConnLifetime = o.MaxLifetime
	config.ConnConfig.ConnectTimeout = o.DialTimeout
	// sqlx prepares nothing; skip the statement cache
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, o.DialTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"), nil
}

// NewRedis parses redisURL, sizes the pool and verifies the connection.
func NewRedis(ctx context.Context, redisURL string, opts *PoolOptions) (*redis.Client, error) {
	o := opts.withDefaults()

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	opt.PoolSize = o.MaxConns
	opt.MinIdleConns = o.MinIdle
	opt.ConnMaxLifetime = o.MaxLifetime
	opt.DialTimeout = o.DialTimeout

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, o.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
