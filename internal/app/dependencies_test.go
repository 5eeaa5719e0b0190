package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

func TestNewRateLimiter(t *testing.T) {
	lim, err := NewRateLimiter(memory.NewStore(), "600-M")
	require.NoError(t, err)
	require.EqualValues(t, 600, lim.Rate.Limit)
	require.Equal(t, time.Minute, lim.Rate.Period)

	_, err = NewRateLimiter(memory.NewStore(), "lots")
	require.Error(t, err)
}

func TestPingRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	deps := &Dependencies{Redis: rdb}
	t.Cleanup(func() { _ = deps.Close() })

	require.NoError(t, deps.PingRedis(context.Background(), time.Second))
	require.Error(t, deps.PingDB(context.Background(), time.Second))
}
