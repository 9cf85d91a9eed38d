package rate

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter: misma semántica fixed-window que RedisLimiter pero en
// proceso. Para despliegues de una sola instancia sin Redis.
type MemoryLimiter struct {
	mu     sync.Mutex
	hits   map[string]int64
	window time.Time
	max    int64
	size   time.Duration
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		hits: make(map[string]int64),
		max:  int64(max),
		size: window,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.size)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.window.Equal(winStart) {
		l.hits = make(map[string]int64)
		l.window = winStart
	}

	l.hits[key]++
	hits := l.hits[key]
	allowed := hits <= l.max
	remaining := l.max - hits
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   l.size - now.Sub(winStart),
	}
	if !allowed {
		res.RetryAfter = res.WindowTTL
	}
	return res, nil
}
