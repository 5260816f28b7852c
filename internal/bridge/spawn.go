package bridge

import (
	"context"
	"sync"
)

// Channel is the caller's end of a spawned task. Messages stays open after
// the task finishes until the caller calls Terminate.
type Channel[T any] struct {
	msgs   chan T
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

// Messages yields the task's events in emission order.
func (c *Channel[T]) Messages() <-chan T { return c.msgs }

// Terminate tears the channel down. It cancels the task's context, discards
// further emissions, and lets Messages close once the task has returned.
// Safe to call more than once.
func (c *Channel[T]) Terminate() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
	})
}

// Spawn runs fn on its own goroutine. Events passed to emit are relayed
// over the returned channel; buffer should cover everything fn emits so fn
// never waits on the caller. A panic in fn is converted by onPanic into a
// final event when onPanic is non-nil.
func Spawn[T any](ctx context.Context, buffer int, fn func(ctx context.Context, emit func(T)), onPanic func(any) T) *Channel[T] {
	ctx, cancel := context.WithCancel(ctx)
	c := &Channel[T]{
		msgs:   make(chan T, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	emit := func(v T) {
		select {
		case c.msgs <- v:
		case <-c.done:
		}
	}
	go func() {
		defer func() {
			<-c.done
			close(c.msgs)
		}()
		defer func() {
			if r := recover(); r != nil && onPanic != nil {
				emit(onPanic(r))
			}
		}()
		fn(ctx, emit)
	}()
	return c
}
