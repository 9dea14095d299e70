package task

import (
	"log/slog"

	"ppos/internal/queue"
)

// ID uniquely identifies a task. IDs are assigned in creation order and never reused.
type ID int

const (
	MinPriority = -20 // most urgent
	MaxPriority = 20  // least urgent

	DefaultQuantum = 20 // ticks
)

// Status is the lifecycle state of a task.
type Status int

const (
	StatusCreated Status = iota
	StatusReady
	StatusRunning
	StatusSuspended
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "Created"
	case StatusReady:
		return "Ready"
	case StatusRunning:
		return "Running"
	case StatusSuspended:
		return "Suspended"
	case StatusTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// Type distinguishes the dispatcher and the main task from user tasks.
type Type int

const (
	TypeSystem Type = iota
	TypeMain
	TypeUser
)

func (t Type) String() string {
	switch t {
	case TypeSystem:
		return "System"
	case TypeMain:
		return "Main"
	case TypeUser:
		return "User"
	default:
		return "Unknown"
	}
}

// Queue is a ring of tasks.
type Queue = queue.Queue[*Task]

// Times holds timing statistics in clock milliseconds.
type Times struct {
	Created     int64
	CPU         int64
	Activations int
	LastStart   int64

	running bool
}

// Start records an activation at now.
func (tm *Times) Start(now int64) {
	tm.LastStart = now
	tm.Activations++
	tm.running = true
}

// Stop folds the time since the last activation into the CPU total. It is a
// no-op if the task was not started since the previous Stop.
func (tm *Times) Stop(now int64) {
	if !tm.running {
		return
	}
	tm.running = false
	if elapsed := now - tm.LastStart; elapsed > 0 {
		tm.CPU += elapsed
	}
}

// Task is the task control block.
type Task struct {
	ID     ID
	Status Status
	Type   Type

	Priority        int // static, [-20, 20], lower is more urgent
	DynamicPriority int // aged by the scheduler, reset on selection

	Quantum          int // ticks
	RemainingQuantum int

	Times      Times
	ExitCode   int
	WakeupTime int64 // clock milliseconds

	// Waiting holds the tasks blocked in Wait on this task.
	Waiting Queue

	ctx   *Context
	stack *stack
	link  queue.Link[*Task]
}

// New returns a task in the Created state with default priority and quantum.
func New(id ID, typ Type, quantum int, now int64) *Task {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	return &Task{
		ID:               id,
		Status:           StatusCreated,
		Type:             typ,
		Quantum:          quantum,
		RemainingQuantum: quantum,
		Times:            Times{Created: now},
	}
}

// Link implements queue.Elem.
func (t *Task) Link() *queue.Link[*Task] { return &t.link }

// LogValue implements slog.LogValuer so log records carry the id only.
func (t *Task) LogValue() slog.Value { return slog.IntValue(int(t.ID)) }

// Context returns the saved execution context, nil before CreateContext.
func (t *Task) Context() *Context { return t.ctx }

// SetPriority sets both the static and the dynamic priority. Out-of-range
// values are clamped; the returned bool reports whether clamping happened.
func (t *Task) SetPriority(p int) bool {
	p, clamped := ClampPriority(p)
	t.Priority = p
	t.DynamicPriority = p
	return clamped
}

// ClampPriority limits p to [MinPriority, MaxPriority].
func ClampPriority(p int) (int, bool) {
	if p < MinPriority {
		return MinPriority, true
	} else if p > MaxPriority {
		return MaxPriority, true
	}
	return p, false
}
