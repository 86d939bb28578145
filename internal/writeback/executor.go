// Package writeback applies accepted fixes to project documents.
//
// Every mutation runs on an [Executor], a single goroutine that plays
// the part of the host's UI-confined write context: callers hand it a
// function and block until it has run. [Applier] combines the executor
// with a [Documents] store so one call writes and commits a file.
package writeback

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrExecutorClosed is returned by [Executor.InvokeAndWait] after Close.
var ErrExecutorClosed = errors.New("write executor closed")

type task struct {
	fn     func() error
	result chan error
}

// Executor runs submitted functions one at a time on a dedicated
// goroutine, in submission order.
type Executor struct {
	tasks     chan task
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewExecutor starts an Executor. Call Close to release its goroutine.
func NewExecutor() *Executor {
	e := &Executor{
		tasks: make(chan task),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *Executor) loop() {
	defer close(e.done)
	for {
		select {
		case <-e.stop:
			return
		case t := <-e.tasks:
			t.result <- run(t.fn)
		}
	}
}

func run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write panicked: %v", r)
		}
	}()
	return fn()
}

// InvokeAndWait runs fn on the executor and waits for it to finish.
// ctx only bounds the wait for the executor to accept fn; once accepted,
// fn always runs to completion and its error is returned.
func (e *Executor) InvokeAndWait(ctx context.Context, fn func() error) error {
	t := task{fn: fn, result: make(chan error, 1)}
	select {
	case <-e.stop:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	case e.tasks <- t:
	}
	return <-t.result
}

// Close stops the executor after any running function returns. Safe to
// call more than once.
func (e *Executor) Close() {
	e.closeOnce.Do(func() { close(e.stop) })
	<-e.done
}
