// Package kernel is the task runtime: it owns the scheduler state, hosts the
// dispatcher and exposes the calls user tasks make.
//
// Exactly one task runs at a time. Every Kernel method except New, Run and the
// read-only accessors used after Run returns must be called from the body of
// the running task. The dispatcher and the main task always get ids 0 and 1.
package kernel

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/google/uuid"

	"ppos/internal/sched"
	"ppos/internal/task"
	"ppos/internal/timer"
)

var (
	ErrAlreadyRun     = errors.New("kernel: already run")
	ErrNotRunning     = errors.New("kernel: no running task")
	ErrSwitchDisabled = errors.New("kernel: task switch disabled")
	ErrWaitSelf       = errors.New("kernel: task cannot wait for itself")
	ErrSystemTask     = errors.New("kernel: not allowed for the dispatcher")
	ErrTerminated     = errors.New("kernel: task terminated")
)

// Kernel holds the scheduler state for one run.
type Kernel struct {
	cfg    sched.Config
	logger *slog.Logger
	rec    sched.Recorder
	ledger task.StackLedger
	timer  *timer.Timer
	runID  string

	taskCount  task.ID
	current    *task.Task
	dispatcher *task.Task
	main       *task.Task
	ready      task.Queue
	sleeping   task.Queue
	tasks      *redblacktree.Tree // task.ID -> *task.Task

	switchEnabled bool
	skipped       int
	pending       atomic.Int64 // ticks since the current task was switched in

	ran      atomic.Bool
	done     chan struct{}
	exitCode int
}

// Option configures a Kernel.
type Option func(*Kernel)

func WithLogger(l *slog.Logger) Option {
	return func(k *Kernel) { k.logger = l }
}

func WithRecorder(r sched.Recorder) Option {
	return func(k *Kernel) { k.rec = r }
}

func WithStackLedger(l task.StackLedger) Option {
	return func(k *Kernel) { k.ledger = l }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(k *Kernel) { k.runID = id }
}

// WithTimer replaces the tick source. The kernel starts it if needed.
func WithTimer(t *timer.Timer) Option {
	return func(k *Kernel) { k.timer = t }
}

// New creates a kernel with the given configuration.
func New(cfg sched.Config, opts ...Option) *Kernel {
	k := &Kernel{
		cfg:           cfg.Normalize(),
		runID:         uuid.NewString(),
		tasks:         redblacktree.NewWith(byID),
		switchEnabled: true,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(k)
	}

	if k.logger == nil {
		k.logger = slog.Default()
	}
	k.logger = k.logger.With("component", "kernel", "run", k.runID)
	if k.timer == nil {
		k.timer = timer.New(k.cfg.Tick())
	}
	if k.ledger == nil {
		k.ledger = task.NewLedger(k.cfg.MaxTasks, k.logger)
	}
	k.ready.SetLogger(k.logger.With("queue", "ready"))
	k.sleeping.SetLogger(k.logger.With("queue", "sleep"))
	return k
}

// Run boots the kernel: it creates the dispatcher and the main task, starts
// the timer, and lets main yield into the dispatcher. main runs as the Main
// task. Run blocks until the dispatcher halts, which happens once no task is
// ready or sleeping, and returns the dispatcher's exit code.
func (k *Kernel) Run(main task.Entry, arg any) (int, error) {
	if !k.ran.CompareAndSwap(false, true) {
		return 0, ErrAlreadyRun
	}
	if main == nil {
		return 0, task.ErrNilEntry
	}

	k.logger.Info("initializing kernel", "tick", k.timer.Interval(), "quantum", k.cfg.Quantum)

	d, err := k.newTask(task.TypeSystem, k.dispatch, nil)
	if err != nil {
		return 0, fmt.Errorf("create dispatcher: %w", err)
	}
	k.dispatcher = d

	m, err := k.newTask(task.TypeMain, main, arg)
	if err != nil {
		k.discard(d)
		return 0, fmt.Errorf("create main task: %w", err)
	}
	k.main = m

	if err := k.timer.Register(k.tick, 1); err != nil {
		k.discard(d, m)
		return 0, fmt.Errorf("register preemption handler: %w", err)
	}
	if err := k.timer.Start(); err != nil && !errors.Is(err, timer.ErrStarted) {
		k.discard(d, m)
		return 0, fmt.Errorf("start timer: %w", err)
	}

	// main yields into the dispatcher
	m.Status = task.StatusReady
	if err := k.ready.Append(m); err != nil {
		k.timer.Stop()
		k.discard(d, m)
		return 0, fmt.Errorf("enqueue main task: %w", err)
	}
	k.setCurrent(nil, d)
	d.Context().Resume()

	<-k.done
	return k.exitCode, nil
}

func (k *Kernel) newTask(typ task.Type, entry task.Entry, arg any) (*task.Task, error) {
	t := task.New(k.taskCount, typ, k.cfg.Quantum, k.Now())
	err := task.CreateContext(t, entry, arg, k.retire, task.StackOptions{
		Size:   k.cfg.StackSize,
		Ledger: k.ledger,
	})
	if err != nil {
		return nil, err
	}

	k.taskCount++
	k.tasks.Put(t.ID, t)
	k.logger.Debug("task context created", "task", t, "type", t.Type)
	return t, nil
}

// discard unwinds tasks whose contexts never ran.
func (k *Kernel) discard(tasks ...*task.Task) {
	for _, t := range tasks {
		t.Context().Release()
		task.DestroyStack(t)
		t.Status = task.StatusTerminated
	}
}

// halt tears the runtime down once the dispatcher has terminated.
func (k *Kernel) halt(code int) {
	k.timer.Stop()

	it := k.tasks.Iterator()
	for it.Next() {
		t := it.Value().(*task.Task)
		if t == k.dispatcher || t.Status == task.StatusTerminated {
			continue
		}
		k.logger.Warn("task left unfinished at halt", "task", t, "status", t.Status)
		t.Context().Release()
		task.DestroyStack(t)
	}

	k.record(sched.EventHalt, k.dispatcher)
	k.logger.Info("kernel halted", "code", code, "tasks", k.tasks.Size())
	k.exitCode = code
	close(k.done)
}

func (k *Kernel) record(kind sched.EventKind, t *task.Task) {
	if k.rec == nil || t == nil {
		return
	}
	k.rec.Record(sched.Event{
		Time:     time.Now(),
		Clock:    k.Now(),
		Kind:     kind,
		TaskID:   t.ID,
		Priority: t.DynamicPriority,
		CPU:      t.Times.CPU,
	})
}

// Now returns the kernel clock in milliseconds.
func (k *Kernel) Now() int64 { return k.timer.Now() }

// Timer exposes the tick source, e.g. to register extra periodic handlers.
func (k *Kernel) Timer() *timer.Timer { return k.timer }

// Config returns the normalized configuration.
func (k *Kernel) Config() sched.Config { return k.cfg }

// RunID identifies this kernel instance in logs and traces.
func (k *Kernel) RunID() string { return k.runID }

// Current returns the running task.
func (k *Kernel) Current() *task.Task { return k.current }

// CurrentID returns the id of the running task, or -1 before Run.
func (k *Kernel) CurrentID() task.ID {
	if k.current == nil {
		return -1
	}
	return k.current.ID
}

func (k *Kernel) Dispatcher() *task.Task { return k.dispatcher }

func (k *Kernel) Main() *task.Task { return k.main }

// ReadyLen returns the number of tasks in the ready queue.
func (k *Kernel) ReadyLen() int { return k.ready.Len() }

// SleepingLen returns the number of tasks in the sleep queue.
func (k *Kernel) SleepingLen() int { return k.sleeping.Len() }

// Lookup finds a task by id. Terminated tasks stay addressable.
func (k *Kernel) Lookup(id task.ID) (*task.Task, bool) {
	v, ok := k.tasks.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*task.Task), true
}

// Tasks returns every task ever created, ordered by id.
func (k *Kernel) Tasks() []*task.Task {
	out := make([]*task.Task, 0, k.tasks.Size())
	it := k.tasks.Iterator()
	for it.Next() {
		out = append(out, it.Value().(*task.Task))
	}
	return out
}

// byID implements the Comparator interface for the task table.
func byID(a, b any) int {
	ia, ib := a.(task.ID), b.(task.ID)
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	default:
		return 0
	}
}
