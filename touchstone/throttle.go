package touchstone

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Endpoint classes sharing one rate budget each.
const (
	ClassStatus       = "status"
	ClassDetail       = "detail"
	ClassScriptDetail = "scriptDetail"
)

// Touchstone rejects tight polling; these floors match the service limits.
const (
	StatusInterval = 4 * time.Second
	DetailInterval = 15 * time.Second
)

// Throttle enforces a minimum interval between calls of the same endpoint
// class. Classes are independent; the first call of a class is never delayed.
// Instances are safe for concurrent use and carry no global state.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewThrottle creates an empty throttle.
func NewThrottle() *Throttle {
	return &Throttle{limiters: map[string]*rate.Limiter{}}
}

// Wait blocks until the class budget allows another call, measured from the
// start of the previous call, or until the context is done.
func (t *Throttle) Wait(ctx context.Context, class string, minInterval time.Duration) error {
	t.mu.Lock()
	limiter, ok := t.limiters[class]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(minInterval), 1)
		t.limiters[class] = limiter
	}
	t.mu.Unlock()
	return limiter.Wait(ctx)
}
