package task

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

var (
	ErrNilTask        = errors.New("task: nil task")
	ErrNilEntry       = errors.New("task: nil entry function")
	ErrHasContext     = errors.New("task: context already created")
	ErrStackExhausted = errors.New("task: stack allocation refused")
)

// Entry is the body of a task.
type Entry func(arg any)

// Context is a saved execution context. Each context is backed by one
// goroutine that only runs while it holds the wake permit; a switch hands the
// permit to the target and parks the caller.
type Context struct {
	wake chan struct{}
	kill chan struct{}
	once sync.Once
}

func newContext() *Context {
	return &Context{
		wake: make(chan struct{}, 1),
		kill: make(chan struct{}),
	}
}

// Resume hands the run permit to c.
func (c *Context) Resume() {
	c.wake <- struct{}{}
}

// SwitchTo resumes next and parks c until something resumes it again.
func (c *Context) SwitchTo(next *Context) {
	next.Resume()
	c.park()
}

// Release unwinds the goroutine behind a parked context. Only used at
// shutdown for tasks that will never be scheduled again.
func (c *Context) Release() {
	c.once.Do(func() { close(c.kill) })
}

// Released reports whether Release has been called.
func (c *Context) Released() bool {
	select {
	case <-c.kill:
		return true
	default:
		return false
	}
}

func (c *Context) park() {
	select {
	case <-c.wake:
	case <-c.kill:
		runtime.Goexit()
	}
}

// StackOptions describe the stack record attached to a new context.
type StackOptions struct {
	Size   int
	Ledger StackLedger
}

// CreateContext allocates a stack record for t and captures a fresh context
// rooted at entry(arg). The context stays parked until first resumed. When
// entry returns, or unwinds through runtime.Goexit, link runs on the task's
// goroutine; it must pass control on, since nothing else will.
func CreateContext(t *Task, entry Entry, arg any, link func(*Task), opts StackOptions) error {
	if t == nil {
		return ErrNilTask
	}
	if entry == nil {
		return ErrNilEntry
	}
	if t.ctx != nil {
		return ErrHasContext
	}

	st, err := allocStack(t.ID, opts)
	if err != nil {
		return fmt.Errorf("create context for task %d: %w", t.ID, err)
	}

	c := newContext()
	t.ctx = c
	t.stack = st

	go func() {
		c.park()
		defer func() {
			if c.Released() || link == nil {
				return
			}
			link(t)
		}()
		entry(arg)
	}()
	return nil
}

// DestroyStack releases the stack record of t. Repeated calls are no-ops.
func DestroyStack(t *Task) {
	if t == nil || t.stack == nil {
		return
	}
	t.stack.release()
}

// StackLive reports whether t still holds its stack record.
func StackLive(t *Task) bool {
	return t != nil && t.stack != nil && !t.stack.released
}
