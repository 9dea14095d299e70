package job

import (
	"fmt"
	"io"

	"github.com/hackebrot/go-fibonacci"

	"ppos/internal/kernel"
	"ppos/internal/task"
)

// FibWork returns a CPU-bound task body. It computes the nth Fibonacci
// number with strategy over and over until the kernel clock reaches
// deadline, checking for preemption between computations.
func FibWork(k *kernel.Kernel, out io.Writer, name string, n int, deadline int64, strategy fibonacci.Strategy) task.Entry {
	return func(any) {
		rounds := 0
		var r any
		for k.Now() < deadline {
			r = strategy.Compute(n)
			rounds++
			k.Checkpoint()
		}

		self := k.Current()
		fmt.Fprintf(out, "%s: fib(%d)=%v rounds=%d activations=%d\n",
			name, n, r, rounds, self.Times.Activations)
	}
}
