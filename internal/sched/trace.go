package sched

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"ppos/internal/task"
)

// Recorder receives scheduler events. Recording has no effect on scheduling.
type Recorder interface {
	Record(ev Event)
}

// Recorders fans an event out to several recorders.
type Recorders []Recorder

func (rs Recorders) Record(ev Event) {
	for _, r := range rs {
		r.Record(ev)
	}
}

// CSVRecorder writes one CSV row per event.
type CSVRecorder struct {
	mu     sync.Mutex
	runID  string
	file   *os.File
	writer *csv.Writer
}

// NewCSVRecorder opens the given file path for CSV logging of events.
func NewCSVRecorder(path, runID string) (*CSVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	r := newCSVRecorder(f, runID)
	r.file = f
	return r, nil
}

func newCSVRecorder(w io.Writer, runID string) *CSVRecorder {
	cw := csv.NewWriter(w)

	// write header
	cw.Write([]string{"timestamp", "run", "clock_ms", "event", "task_id", "priority", "cpu_ms"})
	cw.Flush()
	return &CSVRecorder{runID: runID, writer: cw}
}

func (r *CSVRecorder) Record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writer.Write([]string{
		ev.Time.Format(time.RFC3339Nano),
		r.runID,
		strconv.FormatInt(ev.Clock, 10),
		ev.Kind.String(),
		strconv.Itoa(int(ev.TaskID)),
		strconv.Itoa(ev.Priority),
		strconv.FormatInt(ev.CPU, 10),
	})
	r.writer.Flush()
}

// Close flushes and closes the underlying file, if any.
func (r *CSVRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.writer.Flush()
	if err := r.writer.Error(); err != nil {
		return err
	}
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// ConsoleRecorder prints a fixed-width line per event.
type ConsoleRecorder struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleRecorder(w io.Writer) *ConsoleRecorder {
	return &ConsoleRecorder{w: w}
}

func (r *ConsoleRecorder) Record(ev Event) {
	// an auxiliary function to center the event kind in the output
	center := func(str string, width int) string {
		spaces := int(float64(width-len(str)) / 2)
		return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", width-(spaces+len(str)))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s = Clock: %07d ms [%s] => Task: %04d, prio=%+03d, cpu=%05d ms\n",
		ev.Time.Format("Jan 02 15:04:05.000"),
		ev.Clock,
		center(ev.Kind.String(), 10),
		ev.TaskID,
		ev.Priority,
		ev.CPU,
	)
}

// Collector keeps events in memory.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Record(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

// Events returns a copy of the recorded events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// Kinds returns the event kinds recorded for id, in order.
func (c *Collector) Kinds(id task.ID) []EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []EventKind
	for _, ev := range c.events {
		if ev.TaskID == id {
			out = append(out, ev.Kind)
		}
	}
	return out
}
