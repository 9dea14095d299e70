// internal/sched/scheduler.go

// Package sched holds the scheduling policy (priority with aging), the
// runtime configuration and the scheduler event stream.
package sched

import (
	"log/slog"

	"ppos/internal/logging"
	"ppos/internal/task"
)

// ReadyQueue is the part of the ready queue Select needs. *task.Queue
// implements it.
type ReadyQueue interface {
	Empty() bool
	Head() *task.Task
	Each(fn func(*task.Task) bool)
	Remove(t *task.Task) error
}

// Select picks the next task from the ready queue and removes it.
//
// The scan starts at the head, which is the initial winner. Each other task
// is compared against the current winner: a strictly lower dynamic priority
// takes over and the previous winner ages by one, otherwise the challenger
// ages by one. Every task that is passed over therefore ages by exactly one
// per round, and ties go to the task closest to the head.
//
// The winner's dynamic priority and remaining quantum are reset to their
// static values. If the winner cannot be removed it is returned as is, with
// a warning. Returns nil for an empty queue.
func Select(ready ReadyQueue, logger *slog.Logger) *task.Task {
	if ready == nil || ready.Empty() {
		return nil
	}

	winner := ready.Head()
	ready.Each(func(t *task.Task) bool {
		if t == winner {
			return true
		}
		if t.DynamicPriority < winner.DynamicPriority {
			winner.DynamicPriority--
			winner = t
		} else {
			t.DynamicPriority--
		}
		return true
	})

	if err := ready.Remove(winner); err != nil {
		logger.Warn("selected task not in ready queue", "task", winner, "error", err)
		return winner
	}

	winner.DynamicPriority = winner.Priority
	winner.RemainingQuantum = winner.Quantum
	logging.Trace(logger, "task selected", "task", winner, "priority", winner.Priority)
	return winner
}
