package sched

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(kind EventKind) Event {
	return Event{
		Time:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Clock:    120,
		Kind:     kind,
		TaskID:   3,
		Priority: -2,
		CPU:      40,
	}
}

func TestCSVRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := newCSVRecorder(&buf, "run-1")
	r.Record(sampleEvent(EventDispatch))
	require.NoError(t, r.Close())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"timestamp", "run", "clock_ms", "event", "task_id", "priority", "cpu_ms"}, rows[0])
	assert.Equal(t, []string{"2024-01-02T03:04:05Z", "run-1", "120", "Dispatch", "3", "-2", "40"}, rows[1])
}

func TestConsoleRecorder(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleRecorder(&buf).Record(sampleEvent(EventExit))

	line := buf.String()
	assert.True(t, strings.Contains(line, "Clock: 0000120 ms"), line)
	assert.True(t, strings.Contains(line, "[   Exit   ]"), line)
	assert.True(t, strings.Contains(line, "Task: 0003"), line)
}

func TestRecordersFanOut(t *testing.T) {
	var a, b Collector
	Recorders{&a, &b}.Record(sampleEvent(EventIdle))

	assert.Len(t, a.Events(), 1)
	assert.Equal(t, []EventKind{EventIdle}, b.Kinds(3))
	assert.Empty(t, b.Kinds(4))
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "Preempt", EventPreempt.String())
	assert.Equal(t, "Unknown", EventKind(42).String())
}
