package lock

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dumeirei/camp-station-backend/internal/common/errors"
)

// exerciseMutualExclusion 并发进入临界区，任一时刻最多一个持有者
func exerciseMutualExclusion(t *testing.T, l Locker, key string) {
	t.Helper()

	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), key)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxSeen)
				if n <= m || atomic.CompareAndSwapInt32(&maxSeen, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxSeen)
}

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	exerciseMutualExclusion(t, l, "site:1")
	assert.Equal(t, 0, l.size(), "空闲键应被回收")
}

func TestLocalLocker_IndependentKeys(t *testing.T) {
	l := NewLocalLocker()

	r1, err := l.Acquire(context.Background(), "site:1")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	r2, err := l.Acquire(ctx, "site:2")
	require.NoError(t, err, "不同营位互不阻塞")
	r2()
}

func TestLocalLocker_ContextTimeout(t *testing.T) {
	l := NewLocalLocker()

	release, err := l.Acquire(context.Background(), "site:1")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "site:1")
	assert.True(t, stderrors.Is(err, errors.ErrLockTimeout))

	release()
	release() // 重复释放无副作用
	assert.Equal(t, 0, l.size())

	again, err := l.Acquire(context.Background(), "site:1")
	require.NoError(t, err)
	again()
}

func setupRedisLocker(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		s.Close()
	})
	return s, NewRedisLocker(client, 5*time.Second)
}

func TestRedisLocker_MutualExclusion(t *testing.T) {
	s, l := setupRedisLocker(t)
	exerciseMutualExclusion(t, l, "lock:site:1")
	assert.False(t, s.Exists("lock:site:1"))
}

func TestRedisLocker_ReleaseOnlyOwnToken(t *testing.T) {
	s, l := setupRedisLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "lock:site:7")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, s.TTL("lock:site:7"))

	// 锁过期后被其他实例取得，旧持有者释放时不能删掉新锁
	s.FastForward(6 * time.Second)
	require.NoError(t, s.Set("lock:site:7", "other-owner"))

	release()
	got, err := s.Get("lock:site:7")
	require.NoError(t, err)
	assert.Equal(t, "other-owner", got)
}

func TestRedisLocker_ContextTimeout(t *testing.T) {
	_, l := setupRedisLocker(t)

	release, err := l.Acquire(context.Background(), "lock:site:1")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "lock:site:1")
	assert.True(t, stderrors.Is(err, errors.ErrLockTimeout))
}
