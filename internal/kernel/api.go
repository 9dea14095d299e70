package kernel

import (
	"fmt"
	"runtime"
	"time"

	"ppos/internal/queue"
	"ppos/internal/sched"
	"ppos/internal/task"
)

// Create makes a user task running entry(arg) and appends it to the ready
// queue. On failure nothing is enqueued and no id is consumed.
func (k *Kernel) Create(entry task.Entry, arg any) (*task.Task, error) {
	if k.current == nil {
		return nil, ErrNotRunning
	}
	t, err := k.newTask(task.TypeUser, entry, arg)
	if err != nil {
		k.logger.Error("create task failed", "error", err)
		return nil, err
	}

	saved := k.DisableSwitch()
	t.Status = task.StatusReady
	err = k.ready.Append(t)
	k.RestoreSwitch(saved)
	if err != nil {
		t.Context().Release()
		task.DestroyStack(t)
		return nil, fmt.Errorf("enqueue task %d: %w", t.ID, err)
	}

	k.record(sched.EventCreated, t)
	k.logger.Info("task created", "task", t, "ready", k.ready.Len())
	return t, nil
}

// SetPriority sets the static and dynamic priority of t, or of the running
// task when t is nil. Values outside [-20, 20] are clamped.
func (k *Kernel) SetPriority(t *task.Task, p int) {
	if t == nil {
		t = k.current
	}
	if t == nil {
		k.logger.Warn("set priority without a task", "priority", p)
		return
	}
	if t.SetPriority(p) {
		k.logger.Warn("priority out of range, clamped", "task", t, "requested", p, "priority", t.Priority)
	}
}

// Priority returns the static priority of t, or of the running task when t
// is nil.
func (k *Kernel) Priority(t *task.Task) int {
	if t == nil {
		t = k.current
	}
	if t == nil {
		return 0
	}
	return t.Priority
}

// Yield puts the running task back on the ready queue and returns control
// to the dispatcher. It returns once the task is selected again, or at once
// if switching is disabled.
func (k *Kernel) Yield() {
	k.yield(sched.EventYield)
}

func (k *Kernel) yield(kind sched.EventKind) {
	t := k.current
	if t == nil || t == k.dispatcher {
		k.logger.Warn("yield outside a user task", "task", t)
		return
	}

	saved := k.DisableSwitch()
	t.Status = task.StatusReady
	err := k.ready.Append(t)
	k.RestoreSwitch(saved)
	if err != nil {
		t.Status = task.StatusRunning
		k.logger.Warn("yield failed", "task", t, "error", err)
		return
	}
	k.record(kind, t)

	if err := k.Switch(k.dispatcher); err != nil {
		saved := k.DisableSwitch()
		_ = k.ready.Remove(t)
		t.Status = task.StatusRunning
		k.RestoreSwitch(saved)
	}
}

// Suspend blocks the running task. If q is non-nil the task is appended to
// it, so a later Awake(t, q) can find it. Control returns to the dispatcher.
func (k *Kernel) Suspend(q *task.Queue) error {
	t := k.current
	if t == nil {
		return ErrNotRunning
	}
	if t == k.dispatcher {
		return ErrSystemTask
	}

	saved := k.DisableSwitch()
	_ = k.ready.Remove(t)
	if q != nil {
		if err := q.Append(t); err != nil {
			k.RestoreSwitch(saved)
			k.logger.Warn("suspend failed", "task", t, "error", err)
			return fmt.Errorf("suspend task %d: %w", t.ID, err)
		}
	}
	t.Status = task.StatusSuspended
	k.RestoreSwitch(saved)
	k.record(sched.EventSuspend, t)

	if err := k.Switch(k.dispatcher); err != nil {
		saved := k.DisableSwitch()
		if q != nil {
			_ = q.Remove(t)
		}
		t.Status = task.StatusRunning
		k.RestoreSwitch(saved)
		return err
	}
	return nil
}

// Awake moves a suspended task to the ready queue, removing it from src when
// src is non-nil. Tasks that are not suspended are left alone, and so is a
// task that is not in src or, with a nil src, still sits in some other queue.
func (k *Kernel) Awake(t *task.Task, src *task.Queue) {
	if t == nil {
		k.logger.Warn("awake without a task")
		return
	}
	if t.Status != task.StatusSuspended {
		k.logger.Debug("awake ignored", "task", t, "status", t.Status)
		return
	}

	saved := k.DisableSwitch()
	defer k.RestoreSwitch(saved)

	if src != nil && !src.Contains(t) {
		k.logger.Warn("awake ignored, task not in source queue", "task", t)
		return
	}
	if src == nil && queue.Linked(t) {
		k.logger.Warn("awake ignored, task still queued elsewhere", "task", t)
		return
	}

	if src != nil {
		if err := src.Remove(t); err != nil {
			k.logger.Warn("awake failed", "task", t, "error", err)
			return
		}
	}
	if err := k.ready.Append(t); err != nil {
		if src != nil {
			_ = src.Append(t)
		}
		k.logger.Warn("awake failed", "task", t, "error", err)
		return
	}
	t.Status = task.StatusReady
	k.record(sched.EventAwake, t)
}

// Wait blocks the running task until t terminates and returns t's exit code.
// It returns at once if t has already terminated.
func (k *Kernel) Wait(t *task.Task) (int, error) {
	if t == nil {
		return 0, task.ErrNilTask
	}
	if t == k.current {
		return 0, ErrWaitSelf
	}
	if t.Status == task.StatusTerminated {
		return t.ExitCode, nil
	}

	if err := k.Suspend(&t.Waiting); err != nil {
		return 0, err
	}
	return t.ExitCode, nil
}

// Sleep suspends the running task for at least d, rounded up to whole
// milliseconds. Non-positive durations return at once.
func (k *Kernel) Sleep(d time.Duration) {
	t := k.current
	if d <= 0 {
		k.logger.Warn("sleep with non-positive duration", "task", t, "duration", d)
		return
	}
	if t == nil {
		k.logger.Warn("sleep outside a task")
		return
	}

	ms := int64((d + time.Millisecond - 1) / time.Millisecond)
	prev := t.WakeupTime
	t.WakeupTime = k.Now() + ms

	if err := k.Suspend(&k.sleeping); err != nil {
		t.WakeupTime = prev
		k.logger.Warn("sleep failed", "task", t, "error", err)
		return
	}
	// recorded once the sleep is over
	k.record(sched.EventSleep, t)
}

// Exit terminates the running task with code and never returns. Tasks
// blocked in Wait on it are awakened. When the dispatcher exits the kernel
// halts.
func (k *Kernel) Exit(code int) {
	t := k.current
	if t == nil {
		k.logger.Error("exit outside a task", "code", code)
		return
	}
	k.terminate(t, code)
	runtime.Goexit()
}

func (k *Kernel) terminate(t *task.Task, code int) {
	now := k.Now()
	t.Times.Stop(now)
	k.logger.Info("task exit",
		"task", t,
		"code", code,
		"execution_ms", now-t.Times.Created,
		"processor_ms", t.Times.CPU,
		"activations", t.Times.Activations,
	)

	saved := k.DisableSwitch()
	_ = k.ready.Remove(t)
	_ = k.sleeping.Remove(t)
	t.Status = task.StatusTerminated
	t.ExitCode = code
	task.DestroyStack(t)
	k.awakeAll(&t.Waiting)
	k.RestoreSwitch(saved)
	k.record(sched.EventExit, t)

	if t == k.dispatcher {
		k.halt(code)
	}
}

func (k *Kernel) awakeAll(q *task.Queue) {
	for !q.Empty() {
		w := q.Head()
		if w.Status != task.StatusSuspended {
			k.logger.Warn("waiter not suspended", "task", w, "status", w.Status)
			_ = q.Remove(w)
			continue
		}
		k.Awake(w, q)
		if q.Contains(w) {
			k.logger.Warn("waiter could not be awakened", "task", w)
			_ = q.Remove(w)
		}
	}
}

// retire runs on a task's goroutine after its entry returned or called Exit.
func (k *Kernel) retire(t *task.Task) {
	if t.Status != task.StatusTerminated {
		k.logger.Debug("task returned without exit", "task", t)
		k.terminate(t, 0)
	}
	if t == k.dispatcher {
		return
	}
	k.setCurrent(t, k.dispatcher)
	k.dispatcher.Context().Resume()
}
