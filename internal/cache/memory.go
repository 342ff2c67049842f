package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// sweepEvery is how many writes pass between scans for expired entries.
const sweepEvery = 256

// Memory is a process-local Cache, used by tests and single-instance setups.
// Expired entries are dropped on read and by a periodic sweep on write.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	writes  int
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, append([]byte(nil), value...), ttl)
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

func (m *Memory) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	if e, ok := m.entries[key]; ok && !e.expired(m.now()) {
		v, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer", key)
		}
		n = v
	}
	n++
	m.put(key, []byte(strconv.FormatInt(n, 10)), ttl)
	return n, nil
}

// put stores an entry; callers hold mu.
func (m *Memory) put(key string, value []byte, ttl time.Duration) {
	e := memoryEntry{value: value}
	now := m.now()
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.entries[key] = e

	m.writes++
	if m.writes%sweepEvery != 0 {
		return
	}
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
}

// Len reports the number of stored entries, expired ones included until swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
