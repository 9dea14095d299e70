package kernel

import (
	"ppos/internal/sched"
	"ppos/internal/task"
)

// dispatch is the body of the dispatcher task. It runs until no task is
// ready or sleeping, then exits, which halts the kernel.
func (k *Kernel) dispatch(any) {
	k.logger.Debug("dispatcher started", "ready", k.ready.Len())

	for !k.ready.Empty() || !k.sleeping.Empty() {
		k.switchEnabled = false
		k.wakeSleepers()

		next := sched.Select(&k.ready, k.logger)
		if next == nil {
			k.switchEnabled = true
			k.idle()
			continue
		}

		k.record(sched.EventDispatch, next)
		k.switchEnabled = true
		if err := k.Switch(next); err != nil {
			k.logger.Error("dispatch failed", "task", next, "error", err)
			continue
		}

		k.switchEnabled = false
		switch next.Status {
		case task.StatusRunning:
			k.logger.Warn("task still running after switch", "task", next)
		case task.StatusTerminated:
			task.DestroyStack(next)
		}
	}

	k.logger.Info("no tasks left, dispatcher exiting")
	k.Exit(0)
}

// wakeSleepers moves every sleeping task whose wakeup time has passed to the
// ready queue, in sleep queue order.
func (k *Kernel) wakeSleepers() {
	if k.sleeping.Empty() {
		return
	}
	now := k.Now()
	for _, t := range k.sleeping.Slice() {
		if t.WakeupTime > now {
			continue
		}
		if t.Status != task.StatusSuspended {
			k.logger.Warn("sleeping task not suspended", "task", t, "status", t.Status)
			_ = k.sleeping.Remove(t)
			if t.Status == task.StatusReady {
				if err := k.ready.Append(t); err != nil {
					k.logger.Warn("requeue sleeper", "task", t, "error", err)
				}
			}
			continue
		}
		k.Awake(t, &k.sleeping)
	}
}

// idle blocks the dispatcher until the next tick.
func (k *Kernel) idle() {
	k.record(sched.EventIdle, k.dispatcher)
	<-k.timer.C()
}
