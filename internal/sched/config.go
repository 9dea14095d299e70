package sched

import (
	"errors"
	"fmt"
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"

	"ppos/internal/task"
)

// Config mirrors config.yml
type Config struct {
	TickMS        int    `yaml:"tick_ms"`         // 1 (by default)
	Quantum       int    `yaml:"quantum"`         // 20 ticks (by default)
	MaxSkipSwitch int    `yaml:"max_skip_switch"` // 10 (by default)
	StackSize     int    `yaml:"stack_size"`      // 64 KiB (by default)
	MaxTasks      int    `yaml:"max_tasks"`       // 0 = unlimited
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	TraceCSV      string `yaml:"trace_csv"`
}

// DefaultConfig is used when no config file is found.
func DefaultConfig() Config {
	return Config{
		TickMS:        1,
		Quantum:       task.DefaultQuantum,
		MaxSkipSwitch: 10,
		StackSize:     task.DefaultStackSize,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load reads YAML and overrides defaults; empty path or a missing file means
// defaults only.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg.Normalize(), nil
}

// Normalize applies the sanity clamps.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if c.TickMS <= 0 {
		c.TickMS = d.TickMS
	}
	if c.Quantum <= 0 {
		c.Quantum = d.Quantum
	}
	if c.MaxSkipSwitch <= 0 {
		c.MaxSkipSwitch = d.MaxSkipSwitch
	}
	if c.StackSize <= 0 {
		c.StackSize = d.StackSize
	}
	if c.MaxTasks < 0 {
		c.MaxTasks = 0
	}
	return c
}

// Tick returns the base tick interval.
func (c Config) Tick() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}
