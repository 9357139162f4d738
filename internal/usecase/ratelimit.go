package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

const (
	DefaultContactLimit  = 10
	DefaultContactWindow = 60 * time.Minute

	// RateLimitFunc is the stored procedure implementing the fixed window.
	RateLimitFunc = "check_rate_limit"
)

// RateLimiter reports whether identifier may perform action once more.
type RateLimiter interface {
	Allow(ctx context.Context, identifier, action string) (bool, error)
}

// StoreRateLimiter delegates the window to the check_rate_limit stored
// procedure, which counts and decides in one statement.
type StoreRateLimiter struct {
	backend store.Backend
	limit   int
	window  time.Duration
}

func NewStoreRateLimiter(backend store.Backend, limit int, window time.Duration) *StoreRateLimiter {
	return &StoreRateLimiter{backend: backend, limit: limit, window: window}
}

func (l *StoreRateLimiter) Allow(ctx context.Context, identifier, action string) (bool, error) {
	body, err := l.backend.Call(ctx, RateLimitFunc, store.Record{
		"p_identifier":     identifier,
		"p_action":         action,
		"p_max_requests":   l.limit,
		"p_window_minutes": int(l.window / time.Minute),
	})
	if err != nil {
		return false, err
	}

	var allowed bool
	if err := json.Unmarshal(body, &allowed); err != nil {
		return false, fmt.Errorf("decode %s result: %w", RateLimitFunc, err)
	}
	return allowed, nil
}

// WindowLimiter is the in-process fixed window: the first request opens a
// window, the next limit-1 requests inside it pass, the rest are refused
// until the window has elapsed.
type WindowLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	now      func() time.Time
}

type visitor struct {
	count     int
	lastReset time.Time
}

func NewWindowLimiter(limit int, window time.Duration, now func() time.Time) *WindowLimiter {
	if now == nil {
		now = time.Now
	}
	return &WindowLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      now,
	}
}

func (rl *WindowLimiter) Allow(_ context.Context, identifier, action string) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := action + "\x00" + identifier
	v, exists := rl.visitors[key]
	now := rl.now()

	if !exists {
		rl.visitors[key] = &visitor{count: 1, lastReset: now}
		return true, nil
	}

	if now.Sub(v.lastReset) > rl.window {
		v.count = 1
		v.lastReset = now
		return true, nil
	}

	v.count++
	return v.count <= rl.limit, nil
}

// Run evicts idle identifiers until ctx is done.
func (rl *WindowLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.prune()
		}
	}
}

func (rl *WindowLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, key)
		}
	}
}
