package core

import (
	"fmt"
	"sync"
)

// ModelLimiter bounds the number of model calls made within one session.
type ModelLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewModelLimiter creates a limiter. If max == 0, calls are unlimited.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: max}
}

// Increment records a call. It returns an error wrapping ErrModelCallLimit
// once the budget is exceeded. A nil limiter never fails.
func (ml *ModelLimiter) Increment() error {
	if ml == nil {
		return nil
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.count++
	if ml.max > 0 && ml.count > ml.max {
		return fmt.Errorf("%w: %d", ErrModelCallLimit, ml.max)
	}
	return nil
}

// Count returns the number of calls recorded.
func (ml *ModelLimiter) Count() int {
	if ml == nil {
		return 0
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()
	return ml.count
}

// Remaining returns how many calls are left, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	if ml == nil {
		return -1
	}
	ml.mu.Lock()
	defer ml.mu.Unlock()
	if ml.max == 0 {
		return -1
	}
	return ml.max - ml.count
}
