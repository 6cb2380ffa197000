package kv

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemorySize = 4096

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory 是进程内的有界 LRU 存储；过期在读取时惰性判断。
type Memory struct {
	cache *lru.Cache[string, memEntry]

	mu  sync.RWMutex
	now func() time.Time
}

func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = defaultMemorySize
	}
	c, err := lru.New[string, memEntry](size)
	if err != nil {
		return nil, err
	}
	return &Memory{cache: c, now: time.Now}, nil
}

// SetClock 替换时间源（测试用来强制过期）。
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) clock() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now()
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.clock().Before(e.expiresAt) {
		m.cache.Remove(key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.clock().Add(ttl)
	}
	m.cache.Add(key, e)
	return nil
}

// Len 返回当前条目数（包含尚未被惰性清理的过期条目）。
func (m *Memory) Len() int { return m.cache.Len() }
