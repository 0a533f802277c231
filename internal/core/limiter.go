package core

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyBatches is returned when no batch slot frees up within the
// limiter's wait time. Clients retry the same start later.
var ErrTooManyBatches = errors.New("too many concurrent batches, please try again later")

const (
	DefaultMaxConcurrentBatches = 5
	DefaultMaxWaitTime          = 30 * time.Second
)

// BatchLimiter bounds how many batches run at once across all import
// sessions. Batches beyond the limit queue for up to maxWait.
type BatchLimiter struct {
	max     int
	maxWait time.Duration

	mu      sync.Mutex
	active  int
	waiting int
	idle    chan struct{} // closed while active == 0
	freed   chan struct{} // closed and replaced by every Release
}

// NewBatchLimiter allows maxConcurrent simultaneous batches. Non-positive
// arguments select the defaults.
func NewBatchLimiter(maxConcurrent int, maxWait time.Duration) *BatchLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentBatches
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	idle := make(chan struct{})
	close(idle)
	return &BatchLimiter{
		max:     maxConcurrent,
		maxWait: maxWait,
		idle:    idle,
		freed:   make(chan struct{}),
	}
}

// Acquire takes a slot, waiting at most maxWait. It returns ctx's error if
// the caller gives up first. Every nil return must be paired with Release.
func (l *BatchLimiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	if l.take() {
		l.mu.Unlock()
		return nil
	}
	l.waiting++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.waiting--
		l.mu.Unlock()
	}()

	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	for {
		l.mu.Lock()
		if l.take() {
			l.mu.Unlock()
			return nil
		}
		freed := l.freed
		l.mu.Unlock()

		select {
		case <-freed:
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrTooManyBatches
		}
	}
}

// TryAcquire takes a slot only if one is free.
func (l *BatchLimiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.take()
}

// take claims a slot if one is free. l.mu must be held, so a slot is never
// held without being counted.
func (l *BatchLimiter) take() bool {
	if l.active >= l.max {
		return false
	}
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	return true
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *BatchLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	close(l.freed)
	l.freed = make(chan struct{})
}

// WaitForDrain blocks until no batch holds a slot or ctx is done.
func (l *BatchLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BatchLimiterStatus is reported by the health endpoint.
type BatchLimiterStatus struct {
	Active        int `json:"active"`
	Waiting       int `json:"waiting"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *BatchLimiter) Status() BatchLimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return BatchLimiterStatus{
		Active:        l.active,
		Waiting:       l.waiting,
		MaxConcurrent: l.max,
	}
}
