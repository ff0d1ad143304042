// Package lock 提供按键互斥的锁，用于串行化同一营位的预订
package lock

import (
	"context"
	"sync"

	"github.com/dumeirei/camp-station-backend/internal/common/errors"
)

// Locker 按键加锁
type Locker interface {
	// Acquire 阻塞直到获得 key 的锁或 ctx 结束，返回的 release 可重复调用
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker 进程内按键互斥锁，空闲的键会被回收
type LocalLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
}

type localEntry struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{entries: make(map[string]*localEntry)}
}

// Acquire 获取锁
func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	e := l.ref(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, errors.ErrLockTimeout.WithError(ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.unref(key, e)
		})
	}, nil
}

func (l *LocalLocker) ref(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *LocalLocker) unref(key string, e *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size 当前持有或等待中的键数量
func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
