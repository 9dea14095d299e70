package kernel

import (
	"ppos/internal/logging"
	"ppos/internal/sched"
	"ppos/internal/task"
)

// DisableSwitch closes the switch gate and returns its previous state for
// RestoreSwitch.
func (k *Kernel) DisableSwitch() bool {
	prev := k.switchEnabled
	k.switchEnabled = false
	return prev
}

// RestoreSwitch puts the gate back to a state returned by DisableSwitch.
func (k *Kernel) RestoreSwitch(prev bool) {
	k.switchEnabled = prev
}

func (k *Kernel) SwitchEnabled() bool { return k.switchEnabled }

// Switch transfers the processor from the running task to target. The
// caller resumes when something switches back to it.
//
// While the gate is closed a user task's switch is refused with
// ErrSwitchDisabled, up to MaxSkipSwitch times in a row; the next attempt
// opens the gate and goes through.
func (k *Kernel) Switch(target *task.Task) error {
	if target == nil {
		return task.ErrNilTask
	}
	prev := k.current
	if prev == nil {
		return ErrNotRunning
	}
	if prev == target {
		logging.Trace(k.logger, "switch to self", "task", target)
		return nil
	}
	if target.Status == task.StatusTerminated || target.Context() == nil {
		return ErrTerminated
	}

	if !k.switchEnabled && prev.Type != task.TypeSystem {
		if k.skipped < k.cfg.MaxSkipSwitch {
			k.skipped++
			k.logger.Warn("switch refused, gate closed", "task", prev, "skipped", k.skipped)
			return ErrSwitchDisabled
		}
		k.logger.Warn("gate closed too long, forcing switch", "task", prev, "skipped", k.skipped)
		k.switchEnabled = true
	}
	k.skipped = 0

	if prev == k.dispatcher {
		prev.Status = task.StatusSuspended
	}
	k.setCurrent(prev, target)
	logging.Trace(k.logger, "switch", "from", prev, "to", target)
	prev.Context().SwitchTo(target.Context())
	return nil
}

func (k *Kernel) setCurrent(prev, next *task.Task) {
	now := k.Now()
	if prev != nil {
		prev.Times.Stop(now)
	}
	k.current = next
	next.Status = task.StatusRunning
	next.Times.Start(now)
	k.pending.Store(0)
}

// tick runs on the timer goroutine once per base tick.
func (k *Kernel) tick(int64) {
	k.pending.Add(1)
}

// Checkpoint charges the ticks elapsed since the last call to the running
// task's quantum and yields once the quantum is used up. Long-running tasks
// call it in their loops. Ticks that arrive while the gate is closed or the
// dispatcher runs are dropped.
func (k *Kernel) Checkpoint() {
	n := k.pending.Swap(0)
	if n == 0 {
		return
	}
	t := k.current
	if t == nil || t.Type == task.TypeSystem || !k.switchEnabled {
		return
	}

	t.RemainingQuantum -= int(n)
	if t.RemainingQuantum > 0 {
		return
	}
	k.logger.Debug("quantum expired", "task", t, "ticks", n)
	t.RemainingQuantum = t.Quantum
	k.yield(sched.EventPreempt)
}
