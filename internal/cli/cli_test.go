package cli

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ppos/internal/job"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScenariosListsEveryScenario(t *testing.T) {
	out, err := execute(t, "scenarios")
	require.NoError(t, err)
	for _, name := range job.Names() {
		assert.Contains(t, out, name)
	}
}

func TestRunScenario(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "missing.yml")
	out, err := execute(t, "run", "--scenario", "join", "--config", cfgPath, "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "main: task 2 exited with 10")
	assert.Contains(t, out, "main: task 4 exited with 30")
	assert.Contains(t, out, "5 tasks")
	assert.Contains(t, out, "task 0000 System Terminated")
}

func TestRunUnknownScenario(t *testing.T) {
	_, err := execute(t, "run", "--scenario", "nope")
	assert.ErrorIs(t, err, job.ErrUnknownScenario)
}

func TestRunWritesTrace(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("quantum: 5\nlog_level: error\n"), 0o644))
	tracePath := filepath.Join(dir, "trace.csv")

	_, err := execute(t, "run", "-s", "pingpong", "-c", cfgPath, "--trace", tracePath, "--console")
	require.NoError(t, err)

	f, err := os.Open(tracePath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Greater(t, len(rows), 1)
	assert.Equal(t, []string{"timestamp", "run", "clock_ms", "event", "task_id", "priority", "cpu_ms"}, rows[0])
	assert.Equal(t, "Halt", rows[len(rows)-1][3])

	run := rows[1][1]
	assert.NotEmpty(t, run)
	for _, row := range rows[1:] {
		assert.Equal(t, run, row[1])
	}
}
