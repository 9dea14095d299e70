package job

import (
	"fmt"
	"io"
	"time"

	"ppos/internal/kernel"
	"ppos/internal/task"
)

// SleepWork returns a task body that sleeps for d on the kernel clock and
// exits with the number of milliseconds it actually slept.
func SleepWork(k *kernel.Kernel, out io.Writer, name string, d time.Duration) task.Entry {
	return func(any) {
		start := k.Now()
		fmt.Fprintf(out, "%s: sleeping %s\n", name, d)
		k.Sleep(d)

		slept := k.Now() - start
		fmt.Fprintf(out, "%s: awake after %d ms\n", name, slept)
		k.Exit(int(slept))
	}
}

// YieldWork returns a task body that prints rounds lines, yielding after
// each one.
func YieldWork(k *kernel.Kernel, out io.Writer, name string, rounds int) task.Entry {
	return func(any) {
		for i := 0; i < rounds; i++ {
			fmt.Fprintf(out, "%s: %d\n", name, i)
			k.Yield()
		}
	}
}
