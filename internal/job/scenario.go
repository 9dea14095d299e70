// Package job holds demo workloads that run on the kernel. Each scenario is
// the body of the Main task.
package job

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/hackebrot/go-fibonacci"

	"ppos/internal/kernel"
	"ppos/internal/task"
)

var ErrUnknownScenario = errors.New("job: unknown scenario")

// Scenario is a named Main task body.
type Scenario struct {
	Name        string
	Description string
	Run         func(k *kernel.Kernel, out io.Writer)
}

// Main adapts the scenario to a task entry.
func (s Scenario) Main(k *kernel.Kernel, out io.Writer) task.Entry {
	return func(any) { s.Run(k, out) }
}

var scenarios = map[string]Scenario{
	"pingpong": {"pingpong", "two tasks alternate by yielding", pingPong},
	"priority": {"priority", "tasks with mixed priorities share the processor through aging", priorities},
	"preempt":  {"preempt", "CPU-bound tasks are preempted when their quantum runs out", preempt},
	"sleep":    {"sleep", "tasks sleep for different durations and wake in deadline order", sleepers},
	"join":     {"join", "main waits for tasks and collects their exit codes", join},
	"suspend":  {"suspend", "tasks block on a shared queue until main wakes them", suspend},
}

// Lookup returns the scenario registered under name.
func Lookup(name string) (Scenario, error) {
	s, ok := scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
	}
	return s, nil
}

// Names lists the registered scenarios in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func create(k *kernel.Kernel, out io.Writer, entry task.Entry) *task.Task {
	t, err := k.Create(entry, nil)
	if err != nil {
		fmt.Fprintf(out, "main: create failed: %v\n", err)
		return nil
	}
	return t
}

func waitAll(k *kernel.Kernel, out io.Writer, tasks []*task.Task) {
	for _, t := range tasks {
		if t == nil {
			continue
		}
		code, err := k.Wait(t)
		if err != nil {
			fmt.Fprintf(out, "main: wait %d failed: %v\n", t.ID, err)
			continue
		}
		fmt.Fprintf(out, "main: task %d exited with %d\n", t.ID, code)
	}
}

func pingPong(k *kernel.Kernel, out io.Writer) {
	fmt.Fprintln(out, "main: start")
	ping := create(k, out, YieldWork(k, out, "ping", 5))
	pong := create(k, out, YieldWork(k, out, "pong", 5))
	waitAll(k, out, []*task.Task{ping, pong})
	fmt.Fprintln(out, "main: end")
}

func priorities(k *kernel.Kernel, out io.Writer) {
	fmt.Fprintln(out, "main: start")
	var tasks []*task.Task
	for _, p := range []struct {
		name string
		prio int
	}{{"low", 5}, {"high", -5}, {"normal", 0}} {
		t := create(k, out, YieldWork(k, out, p.name, 5))
		if t != nil {
			k.SetPriority(t, p.prio)
			tasks = append(tasks, t)
		}
	}
	waitAll(k, out, tasks)
	fmt.Fprintln(out, "main: end")
}

func preempt(k *kernel.Kernel, out io.Writer) {
	fmt.Fprintln(out, "main: start")
	deadline := k.Now() + 200
	var tasks []*task.Task
	for i, prio := range []int{0, 2, -2} {
		name := fmt.Sprintf("fib%d", i)
		t := create(k, out, FibWork(k, out, name, 20, deadline, fibonacci.NewRecursive()))
		if t != nil {
			k.SetPriority(t, prio)
			tasks = append(tasks, t)
		}
	}
	waitAll(k, out, tasks)
	fmt.Fprintln(out, "main: end")
}

func sleepers(k *kernel.Kernel, out io.Writer) {
	fmt.Fprintln(out, "main: start")
	var tasks []*task.Task
	for i, ms := range []int{90, 30, 60} {
		name := fmt.Sprintf("sleeper%d", i)
		tasks = append(tasks, create(k, out, SleepWork(k, out, name, time.Duration(ms)*time.Millisecond)))
	}
	waitAll(k, out, tasks)
	fmt.Fprintln(out, "main: end")
}

func join(k *kernel.Kernel, out io.Writer) {
	fmt.Fprintln(out, "main: start")
	var tasks []*task.Task
	for i := 1; i <= 3; i++ {
		code := i * 10
		tasks = append(tasks, create(k, out, func(any) {
			fmt.Fprintf(out, "task %d: exiting with %d\n", k.CurrentID(), code)
			k.Exit(code)
		}))
	}
	waitAll(k, out, tasks)
	fmt.Fprintln(out, "main: end")
}

func suspend(k *kernel.Kernel, out io.Writer) {
	fmt.Fprintln(out, "main: start")
	var q task.Queue
	var tasks []*task.Task
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("worker%d", i)
		tasks = append(tasks, create(k, out, func(any) {
			fmt.Fprintf(out, "%s: blocking\n", name)
			if err := k.Suspend(&q); err != nil {
				fmt.Fprintf(out, "%s: suspend failed: %v\n", name, err)
				return
			}
			fmt.Fprintf(out, "%s: resumed\n", name)
		}))
	}

	// let every worker reach the queue
	for i := 0; i < 10 && q.Len() < len(tasks); i++ {
		k.Yield()
	}
	fmt.Fprintf(out, "main: %d workers blocked\n", q.Len())
	for !q.Empty() {
		k.Awake(q.Head(), &q)
	}
	waitAll(k, out, tasks)
	fmt.Fprintln(out, "main: end")
}
