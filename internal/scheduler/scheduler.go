// Package scheduler runs debounced background tasks keyed by name.
// Scheduling a key that is already running cancels the in-flight task
// first, so at most one task per key is ever active.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
)

// Task is a cancellable unit of background work. Implementations must
// observe ctx and exit without side effects when cancelled.
type Task func(ctx context.Context)

type entry struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the per-key task registry.
type Scheduler struct {
	mu     sync.Mutex
	tasks  map[string]*entry
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New creates an empty scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		tasks:  make(map[string]*entry),
		logger: logger,
	}
}

// Schedule starts task under key, cancelling any in-flight task for the
// same key. The parent ctx bounds the task's lifetime; cancelling it
// (e.g. on connection close) cancels the task too.
func (s *Scheduler) Schedule(ctx context.Context, key string, task Task) {
	taskCtx, cancel := context.WithCancel(ctx)
	e := &entry{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if old, ok := s.tasks[key]; ok {
		old.cancel()
		s.logger.Debug("superseded in-flight task", "key", key)
	}
	s.tasks[key] = e
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(e.done)
		defer s.release(key, e)
		task(taskCtx)
	}()
}

// release removes the registry entry only if it still belongs to this
// task. A superseded task finishing late must not clobber the newer
// task's entry.
func (s *Scheduler) release(key string, e *entry) {
	s.mu.Lock()
	if s.tasks[key] == e {
		delete(s.tasks, key)
	}
	s.mu.Unlock()
	e.cancel()
}

// Active reports whether a task is currently registered for key.
func (s *Scheduler) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// CancelAll cancels every in-flight task.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	for _, e := range s.tasks {
		e.cancel()
	}
	s.mu.Unlock()
}

// Wait blocks until every started task has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
