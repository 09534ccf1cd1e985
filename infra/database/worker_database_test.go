package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolOptionsDefaults(t *testing.T) {
	var nilOpts *PoolOptions
	d := nilOpts.withDefaults()
	assert.Equal(t, 5, d.MaxConns)
	assert.Equal(t, 1, d.MinIdle)
	assert.Equal(t, time.Hour, d.MaxLifetime)

	o := (&PoolOptions{MaxConns: 20, DialTimeout: time.Second}).withDefaults()
	assert.Equal(t, 20, o.MaxConns)
	assert.Equal(t, time.Second, o.DialTimeout)
	assert.Equal(t, time.Hour, o.MaxLifetime)
}

func TestBadURLs(t *testing.T) {
	ctx := context.Background()

	_, err := NewRedis(ctx, "not-a-url", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse REDIS_URL")

	_, err = NewPostgres(ctx, "postgres://%zz", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse DATABASE_URL")
}
