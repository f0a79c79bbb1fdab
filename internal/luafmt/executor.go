package luafmt

import (
	"context"
	"errors"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// call is one unit of work for the executor's worker goroutine.
type call struct {
	fn     func(L *lua.LState) error
	result chan error
}

// Executor owns a Lua state and serializes all operations on it through a
// single goroutine. LState is not goroutine-safe; provider callbacks run on
// arbiter-managed goroutines, so every script call is marshaled here.
type Executor struct {
	L     *lua.LState
	queue chan *call
	done  chan struct{}

	closeOnce sync.Once
}

// NewExecutor creates an executor for L and starts its worker goroutine.
// The executor takes ownership of L; Close tears both down.
func NewExecutor(L *lua.LState) *Executor {
	e := &Executor{
		L:     L,
		queue: make(chan *call, 16),
		done:  make(chan struct{}),
	}
	go e.run()
	return e
}

// Execute runs fn on the executor's goroutine and waits for it to finish or
// for ctx to be canceled. On cancelation the script call is abandoned: the
// worker may still be running it, but its result is discarded.
func (e *Executor) Execute(ctx context.Context, fn func(L *lua.LState) error) error {
	c := &call{fn: fn, result: make(chan error, 1)}

	select {
	case e.queue <- c:
	case <-e.done:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-c.result:
		return err
	case <-e.done:
		return ErrExecutorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the worker and closes the Lua state. Pending calls fail with
// ErrExecutorClosed. Close is idempotent.
func (e *Executor) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
}

func (e *Executor) run() {
	defer e.L.Close()
	for {
		select {
		case <-e.done:
			e.drain()
			return
		case c := <-e.queue:
			c.result <- e.runCall(c)
		}
	}
}

// runCall executes one script call with panic recovery, so a misbehaving
// script surfaces as an error instead of taking down the process.
func (e *Executor) runCall(c *call) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				err = v
			case string:
				err = errors.New(v)
			default:
				err = errors.New("lua panic")
			}
		}
	}()
	return c.fn(e.L)
}

// drain fails any call still queued at shutdown.
func (e *Executor) drain() {
	for {
		select {
		case c := <-e.queue:
			c.result <- ErrExecutorClosed
		default:
			return
		}
	}
}
