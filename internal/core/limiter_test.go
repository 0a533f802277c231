package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBatchLimiter_Defaults(t *testing.T) {
	l := NewBatchLimiter(0, 0)
	if got := l.Status().MaxConcurrent; got != DefaultMaxConcurrentBatches {
		t.Errorf("MaxConcurrent = %d, want %d", got, DefaultMaxConcurrentBatches)
	}
	if l.maxWait != DefaultMaxWaitTime {
		t.Errorf("maxWait = %v, want %v", l.maxWait, DefaultMaxWaitTime)
	}
}

func TestBatchLimiter_AcquireRelease(t *testing.T) {
	l := NewBatchLimiter(2, time.Second)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire %d: %v", i, err)
		}
	}
	if l.TryAcquire() {
		t.Fatal("TryAcquire succeeded with every slot taken")
	}
	if got := l.Status().Active; got != 2 {
		t.Errorf("Active = %d, want 2", got)
	}

	l.Release()
	if !l.TryAcquire() {
		t.Fatal("TryAcquire failed after Release")
	}
	l.Release()
	l.Release()

	if got := l.Status().Active; got != 0 {
		t.Errorf("Active = %d, want 0", got)
	}
}

func TestBatchLimiter_WaitErrors(t *testing.T) {
	tests := []struct {
		name    string
		ctx     func() (context.Context, context.CancelFunc)
		wantErr error
	}{
		{
			name:    "wait time expires",
			ctx:     func() (context.Context, context.CancelFunc) { return context.WithCancel(context.Background()) },
			wantErr: ErrTooManyBatches,
		},
		{
			name: "caller gives up first",
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 10*time.Millisecond)
			},
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			maxWait := 20 * time.Millisecond
			if tt.wantErr != ErrTooManyBatches {
				maxWait = time.Minute
			}
			l := NewBatchLimiter(1, maxWait)
			if !l.TryAcquire() {
				t.Fatal("TryAcquire failed on empty limiter")
			}
			defer l.Release()

			ctx, cancel := tt.ctx()
			defer cancel()

			if err := l.Acquire(ctx); !errors.Is(err, tt.wantErr) {
				t.Errorf("Acquire() error = %v, want %v", err, tt.wantErr)
			}
			if got := l.Status().Waiting; got != 0 {
				t.Errorf("Waiting = %d after Acquire returned", got)
			}
		})
	}
}

func TestBatchLimiter_WaiterGetsReleasedSlot(t *testing.T) {
	l := NewBatchLimiter(1, 5*time.Second)
	l.TryAcquire()

	acquired := make(chan error, 1)
	go func() { acquired <- l.Acquire(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for l.Status().Waiting != 1 {
		if time.Now().After(deadline) {
			t.Fatal("waiter never queued")
		}
		time.Sleep(time.Millisecond)
	}

	l.Release()
	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not unblocked by Release")
	}
	l.Release()
}

func TestBatchLimiter_NeverExceedsLimit(t *testing.T) {
	const limit = 3
	l := NewBatchLimiter(limit, 5*time.Second)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			defer l.Release()

			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
		}()
	}
	wg.Wait()

	if p := peak.Load(); p > limit {
		t.Errorf("peak concurrency = %d, want <= %d", p, limit)
	}
	if got := l.Status().Active; got != 0 {
		t.Errorf("Active = %d after all batches finished", got)
	}
}

func TestBatchLimiter_WaitForDrain(t *testing.T) {
	t.Run("idle returns at once", func(t *testing.T) {
		l := NewBatchLimiter(2, time.Second)
		if err := l.WaitForDrain(context.Background()); err != nil {
			t.Errorf("WaitForDrain() = %v", err)
		}
	})

	t.Run("waits for release", func(t *testing.T) {
		l := NewBatchLimiter(2, time.Second)
		l.TryAcquire()
		l.TryAcquire()

		go func() {
			time.Sleep(10 * time.Millisecond)
			l.Release()
			l.Release()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.WaitForDrain(ctx); err != nil {
			t.Errorf("WaitForDrain() = %v", err)
		}
	})

	t.Run("context ends first", func(t *testing.T) {
		l := NewBatchLimiter(1, time.Second)
		l.TryAcquire()
		defer l.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitForDrain() = %v, want DeadlineExceeded", err)
		}
	})

	t.Run("busy again after drain", func(t *testing.T) {
		l := NewBatchLimiter(1, time.Second)
		l.TryAcquire()
		l.Release()
		l.TryAcquire()
		defer l.Release()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := l.WaitForDrain(ctx); err == nil {
			t.Error("WaitForDrain() returned while a batch held a slot")
		}
	})
}

func TestBatchLimiter_DrainWaitsForEveryHolder(t *testing.T) {
	l := NewBatchLimiter(4, time.Second)

	var wg sync.WaitGroup
	release := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Error(err)
				return
			}
			<-release
			l.Release()
		}()
	}

	deadline := time.Now().Add(time.Second)
	for l.Status().Active != 4 {
		if time.Now().After(deadline) {
			t.Fatalf("Active = %d, want 4", l.Status().Active)
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.WaitForDrain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitForDrain() = %v while batches hold slots", err)
	}

	close(release)
	wg.Wait()
	if err := l.WaitForDrain(context.Background()); err != nil {
		t.Errorf("WaitForDrain() = %v after release", err)
	}
}
