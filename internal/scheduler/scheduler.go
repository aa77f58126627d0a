package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler runs a task at a fixed interval on a background goroutine
type Scheduler struct {
	interval time.Duration
	task     func()
	clock    clock.Clock

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// New creates a scheduler; it does nothing until Start is called
func New(interval time.Duration, task func(), opts ...Option) *Scheduler {
	s := &Scheduler{
		interval: interval,
		task:     task,
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins executing the task every interval. Calling Start on a running
// scheduler or with a non-positive interval is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	// Created before Start returns so a mock clock Add right after Start fires it
	ticker := s.clock.Ticker(s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.task()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the task loop and waits for a running task to return.
// Must not be called from inside the task.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.cancel()
	s.wg.Wait()
	s.running = false
}

// IsRunning returns true if the task loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
