package sched

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppos/internal/logging"
	"ppos/internal/queue"
	"ppos/internal/task"
)

func readyQueue(t *testing.T, prios ...int) (*task.Queue, []*task.Task) {
	t.Helper()
	q := &task.Queue{}
	tasks := make([]*task.Task, len(prios))
	for i, p := range prios {
		tk := task.New(task.ID(i), task.TypeUser, 0, 0)
		tk.SetPriority(p)
		tk.Status = task.StatusReady
		require.NoError(t, q.Append(tk))
		tasks[i] = tk
	}
	return q, tasks
}

// round selects the next task and puts it back at the tail, as a task that
// runs and yields would.
func round(t *testing.T, q *task.Queue) *task.Task {
	t.Helper()
	next := Select(q, logging.Discard())
	require.NotNil(t, next)
	require.NoError(t, q.Append(next))
	return next
}

func TestSelectEmpty(t *testing.T) {
	assert.Nil(t, Select(&task.Queue{}, logging.Discard()))
	assert.Nil(t, Select(nil, logging.Discard()))
}

func TestSelectSingle(t *testing.T) {
	q, tasks := readyQueue(t, 3)
	tasks[0].DynamicPriority = -4
	tasks[0].RemainingQuantum = 1

	got := Select(q, logging.Discard())
	assert.Same(t, tasks[0], got)
	assert.True(t, q.Empty())
	assert.Equal(t, 3, got.DynamicPriority)
	assert.Equal(t, got.Quantum, got.RemainingQuantum)
}

func TestSelectTieGoesToHead(t *testing.T) {
	q, tasks := readyQueue(t, 0, 0, 0)

	got := Select(q, logging.Discard())
	assert.Same(t, tasks[0], got)
	assert.Equal(t, -1, tasks[1].DynamicPriority)
	assert.Equal(t, -1, tasks[2].DynamicPriority)
}

func TestSelectAgesEveryLoserByOne(t *testing.T) {
	q, tasks := readyQueue(t, 4, -2, 7, 0)

	got := Select(q, logging.Discard())
	require.Same(t, tasks[1], got)

	want := map[task.ID]int{0: 3, 1: -2, 2: 6, 3: -1}
	have := map[task.ID]int{}
	for _, tk := range tasks {
		have[tk.ID] = tk.DynamicPriority
	}
	if diff := cmp.Diff(want, have); diff != "" {
		t.Errorf("dynamic priorities mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, q.Len())
}

func TestAgingIsMonotonic(t *testing.T) {
	q, tasks := readyQueue(t, -10, 10)
	low := tasks[1]

	prev := low.DynamicPriority
	for i := 0; i < 5; i++ {
		got := round(t, q)
		require.Same(t, tasks[0], got, "round %d", i)
		assert.Equal(t, prev-1, low.DynamicPriority, "round %d", i)
		assert.Equal(t, got.Priority, got.DynamicPriority)
		prev = low.DynamicPriority
	}
}

func TestFairnessEqualPriorities(t *testing.T) {
	q, tasks := readyQueue(t, 0, 0, 0)

	counts := map[task.ID]int{}
	for i := 0; i < 10; i++ {
		counts[round(t, q).ID]++
	}
	for _, tk := range tasks {
		assert.GreaterOrEqual(t, counts[tk.ID], 2, "task %d selected %d times", tk.ID, counts[tk.ID])
	}
}

func TestMixedPrioritiesEventuallyRunLowUrgency(t *testing.T) {
	// A=5, B=-5, C=0
	q, tasks := readyQueue(t, 5, -5, 0)
	a, b := tasks[0], tasks[1]

	first := round(t, q)
	require.Same(t, b, first)

	// The gap between A and B is 10, so A must win within a bounded number
	// of rounds as it ages by one per round.
	ranA := false
	for i := 0; i < 30 && !ranA; i++ {
		ranA = round(t, q) == a
	}
	assert.True(t, ranA, "low urgency task never selected")
	assert.Equal(t, 5, a.DynamicPriority)
}

// stuckQueue refuses every removal.
type stuckQueue struct {
	*task.Queue
}

func (stuckQueue) Remove(*task.Task) error { return queue.ErrNotFound }

func TestSelectKeepsWinnerWhenRemoveFails(t *testing.T) {
	q, tasks := readyQueue(t, 0, -3)
	winner := tasks[1]
	winner.DynamicPriority = -7
	winner.RemainingQuantum = 1

	var buf bytes.Buffer
	logger := logging.NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	got := Select(stuckQueue{q}, logger)
	require.Same(t, winner, got)
	assert.Equal(t, -7, got.DynamicPriority)
	assert.Equal(t, 1, got.RemainingQuantum)
	assert.Equal(t, -1, tasks[0].DynamicPriority)
	assert.Equal(t, 2, q.Len())
	assert.Contains(t, buf.String(), "selected task not in ready queue")
}
