// Package sched provides a bounded-concurrency task scheduler. Tasks are
// admitted in strict FIFO order and at most N run at once; a completion
// immediately admits the next queued task.
package sched

import (
	"context"
	"sync"
)

// Task is one unit of work producing a value or failing.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of a submitted task.
type Result[T any] struct {
	Value T
	Err   error
}

// Scheduler runs tasks with a fixed concurrency ceiling. The zero value is
// not usable; create instances with New.
type Scheduler[T any] struct {
	mu      sync.Mutex
	limit   int
	running int
	queue   []*submission[T]
}

type submission[T any] struct {
	ctx  context.Context
	task Task[T]
	done chan Result[T]
}

// New creates a Scheduler with the given concurrency ceiling.
// A limit below 1 is treated as 1.
func New[T any](limit int) *Scheduler[T] {
	if limit < 1 {
		limit = 1
	}
	return &Scheduler[T]{limit: limit}
}

// Submit queues a task and returns a channel that receives its outcome.
// The channel is buffered; the result is delivered exactly once. One task's
// failure never affects another submission.
func (s *Scheduler[T]) Submit(ctx context.Context, task Task[T]) <-chan Result[T] {
	sub := &submission[T]{ctx: ctx, task: task, done: make(chan Result[T], 1)}

	s.mu.Lock()
	s.queue = append(s.queue, sub)
	s.mu.Unlock()

	s.admit()
	return sub.done
}

// Do submits a task and blocks until it resolves.
func (s *Scheduler[T]) Do(ctx context.Context, task Task[T]) (T, error) {
	res := <-s.Submit(ctx, task)
	return res.Value, res.Err
}

// admit starts queued tasks while slots are free. Mutation of the queue and
// running count happens under the lock as one step, so admission never
// exceeds the ceiling.
func (s *Scheduler[T]) admit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.running < s.limit && len(s.queue) > 0 {
		sub := s.queue[0]
		s.queue = s.queue[1:]
		s.running++

		go func() {
			value, err := sub.task(sub.ctx)
			sub.done <- Result[T]{Value: value, Err: err}

			s.mu.Lock()
			s.running--
			s.mu.Unlock()
			s.admit()
		}()
	}
}

// Queued returns the number of tasks waiting for admission.
func (s *Scheduler[T]) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Running returns the number of tasks currently executing.
func (s *Scheduler[T]) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
