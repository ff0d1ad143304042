package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dumeirei/camp-station-backend/internal/common/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupMiniRedis 创建 miniredis 测试实例
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		s.Close()
	})
	return s, client
}

func TestInit(t *testing.T) {
	s, _ := setupMiniRedis(t)

	client, err := Init(&config.RedisConfig{
		Host:        s.Host(),
		Port:        s.Server().Addr().Port,
		PoolSize:    5,
		DialTimeout: 1,
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.NoError(t, Close())
}

func TestInit_Unreachable(t *testing.T) {
	_, err := Init(&config.RedisConfig{Host: "127.0.0.1", Port: 1, DialTimeout: 1})
	assert.Error(t, err)
}

type cachedRule struct {
	ID    int64  `json:"id"`
	Price string `json:"price"`
}

func TestCache_SetGet(t *testing.T) {
	s, client := setupMiniRedis(t)
	c := New(client)
	ctx := context.Background()

	t.Run("未命中", func(t *testing.T) {
		var out []cachedRule
		hit, err := c.Get(ctx, PricingRulesKey(1), &out)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("写入后命中", func(t *testing.T) {
		in := []cachedRule{{ID: 1, Price: "100.00"}, {ID: 2, Price: "150.00"}}
		require.NoError(t, c.Set(ctx, PricingRulesKey(1), in, time.Minute))

		var out []cachedRule
		hit, err := c.Get(ctx, PricingRulesKey(1), &out)
		require.NoError(t, err)
		assert.True(t, hit)
		assert.Equal(t, in, out)
	})

	t.Run("过期后未命中", func(t *testing.T) {
		s.FastForward(2 * time.Minute)
		var out []cachedRule
		hit, err := c.Get(ctx, PricingRulesKey(1), &out)
		require.NoError(t, err)
		assert.False(t, hit)
	})

	t.Run("删除", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k", 1, 0))
		require.NoError(t, c.Delete(ctx, "k"))
		assert.False(t, s.Exists("k"))
	})
}

func TestCache_CorruptValue(t *testing.T) {
	s, client := setupMiniRedis(t)
	require.NoError(t, s.Set(PricingRulesKey(9), "{not json"))

	var out []cachedRule
	hit, err := New(client).Get(context.Background(), PricingRulesKey(9), &out)
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestCache_Disabled(t *testing.T) {
	c := New(nil)
	ctx := context.Background()

	assert.False(t, c.Enabled())
	assert.NoError(t, c.Set(ctx, "k", 1, time.Minute))
	hit, err := c.Get(ctx, "k", new(int))
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestCache_IncrWindow(t *testing.T) {
	s, client := setupMiniRedis(t)
	c := New(client)
	ctx := context.Background()
	key := BuildKey(KeyPrefixRateLimit, "10.0.0.1")

	for i := int64(1); i <= 3; i++ {
		n, err := c.IncrWindow(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	assert.Equal(t, time.Minute, s.TTL(key))

	s.FastForward(time.Minute + time.Second)
	n, err := c.IncrWindow(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "pricing:rules:42", PricingRulesKey(42))
	assert.Equal(t, "lock:site:42", SiteLockKey(42))
	assert.Equal(t, "ratelimit:a:b", BuildKey(KeyPrefixRateLimit, "a", "b"))
}
