package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TaskFunc is a unit of background work. The context carries the per-task
// deadline and is cancelled when the supervisor is forced to stop.
type TaskFunc func(ctx context.Context) error

// Tasks runs fire-and-forget work with bounded concurrency, a per-task
// timeout, and panic recovery. Submissions beyond the queue limit are
// dropped rather than blocking the caller.
type Tasks struct {
	sem      chan struct{}
	timeout  time.Duration
	maxQueue int

	mu      sync.Mutex
	pending int
	closed  bool
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewTasks returns a supervisor running at most concurrency tasks at once.
// Up to 16x that many may wait for a slot.
func NewTasks(concurrency int, timeout time.Duration) *Tasks {
	if concurrency <= 0 {
		concurrency = 8
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tasks{
		sem:      make(chan struct{}, concurrency),
		timeout:  timeout,
		maxQueue: concurrency * 16,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Go schedules fn under name. It reports false when the task was dropped
// because the supervisor is saturated or shutting down.
func (t *Tasks) Go(name string, fn TaskFunc) bool {
	t.mu.Lock()
	if t.closed || t.pending >= t.maxQueue {
		closed := t.closed
		t.mu.Unlock()
		backgroundTasks.WithLabelValues(name, "dropped").Inc()
		log.Warn().Str("task", name).Bool("closed", closed).Msg("background task dropped")
		return false
	}
	t.pending++
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer func() {
			t.mu.Lock()
			t.pending--
			t.mu.Unlock()
			t.wg.Done()
		}()

		select {
		case t.sem <- struct{}{}:
		case <-t.ctx.Done():
			backgroundTasks.WithLabelValues(name, "dropped").Inc()
			return
		}
		defer func() { <-t.sem }()

		t.run(name, fn)
	}()
	return true
}

func (t *Tasks) run(name string, fn TaskFunc) {
	ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
	defer cancel()

	start := time.Now()
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			log.Error().
				Str("task", name).
				Str("panic", fmt.Sprint(r)).
				Bytes("stack", debug.Stack()).
				Msg("background task panicked")
		}
		backgroundTasks.WithLabelValues(name, outcome).Inc()
	}()

	if err := fn(ctx); err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		log.Warn().Err(err).Str("task", name).Dur("elapsed", time.Since(start)).Msg("background task failed")
	}
}

// Pending returns the number of tasks queued or running.
func (t *Tasks) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Wait blocks until every submitted task has finished.
func (t *Tasks) Wait() { t.wg.Wait() }

// Shutdown stops accepting tasks and waits for in-flight ones. When ctx
// expires first, running tasks are cancelled and ctx.Err() is returned.
func (t *Tasks) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.cancel()
		return nil
	case <-ctx.Done():
		t.cancel()
		return ctx.Err()
	}
}
