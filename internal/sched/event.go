// internal/sched/event.go

package sched

import (
	"time"

	"ppos/internal/task"
)

// EventKind represents the type of scheduler event
type EventKind int

const (
	EventCreated EventKind = iota
	EventDispatch
	EventYield
	EventPreempt
	EventSuspend
	EventAwake
	EventSleep
	EventExit
	EventIdle
	EventHalt
)

// Event is emitted on every state change the kernel makes
type Event struct {
	Time     time.Time
	Clock    int64 // kernel clock, ms
	Kind     EventKind
	TaskID   task.ID
	Priority int // dynamic priority at the time of the event
	CPU      int64
}

func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "Created"
	case EventDispatch:
		return "Dispatch"
	case EventYield:
		return "Yield"
	case EventPreempt:
		return "Preempt"
	case EventSuspend:
		return "Suspend"
	case EventAwake:
		return "Awake"
	case EventSleep:
		return "Sleep"
	case EventExit:
		return "Exit"
	case EventIdle:
		return "Idle"
	case EventHalt:
		return "Halt"
	default:
		return "Unknown"
	}
}
