package sched

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverridesAndClamps(t *testing.T) {
	path := writeConfig(t, `
tick_ms: 2
quantum: -4
max_skip_switch: 3
max_tasks: 16
log_level: debug
trace_csv: out.csv
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	want := DefaultConfig()
	want.TickMS = 2
	want.MaxSkipSwitch = 3
	want.MaxTasks = 16
	want.LogLevel = "debug"
	want.TraceCSV = "out.csv"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2*time.Millisecond, cfg.Tick())
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "tick_ms: [1, 2\n")
	_, err := Load(path)
	require.Error(t, err)
}
