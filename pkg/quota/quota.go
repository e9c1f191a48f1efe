// Package quota enforces a fixed-window limit on inference-backed operations.
// The window starts at the first counted operation and resets when it expires;
// it does not slide.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
)

// Limiter gates operations per actor over a fixed window.
type Limiter interface {
	// Allow consumes one unit of quota for the actor. It returns
	// ErrQuotaExceeded when the actor has exhausted the window's budget.
	// The rejected call does not consume quota.
	Allow(ctx context.Context, actorID string) error

	// Remaining reports how much budget the actor has left in the
	// current window.
	Remaining(ctx context.Context, actorID string) (int, error)
}

// MemoryLimiter is an in-process fixed-window limiter for tests and
// single-node deployments.
type MemoryLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	counts map[string]*windowCount

	// now is swappable in tests.
	now func() time.Time
}

type windowCount struct {
	start time.Time
	count int
}

// NewMemoryLimiter creates a limiter allowing limit operations per window.
func NewMemoryLimiter(window time.Duration, limit int) *MemoryLimiter {
	return &MemoryLimiter{
		window: window,
		limit:  limit,
		counts: make(map[string]*windowCount),
		now:    time.Now,
	}
}

// Allow consumes one unit of quota for the actor.
func (l *MemoryLimiter) Allow(_ context.Context, actorID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	wc, ok := l.counts[actorID]
	if !ok || now.Sub(wc.start) >= l.window {
		l.counts[actorID] = &windowCount{start: now, count: 1}
		return nil
	}

	if wc.count >= l.limit {
		return fmt.Errorf("actor %s: %w", actorID, cverrors.ErrQuotaExceeded)
	}
	wc.count++
	return nil
}

// Remaining reports the actor's remaining budget in the current window.
func (l *MemoryLimiter) Remaining(_ context.Context, actorID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	wc, ok := l.counts[actorID]
	if !ok || l.now().Sub(wc.start) >= l.window {
		return l.limit, nil
	}
	remaining := l.limit - wc.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
