// Package config loads an embedder's runtime configuration from an
// optional YAML document: scheduler quantum and queue shape, debug level
// and breakpoints. This is deliberately not a module loader or library-path
// resolver; it only configures the VM/scheduler/debugger knobs those
// packages already expose.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/minilang/ml/debug"
	"github.com/minilang/ml/scheduler"
)

// Config is the embedder-facing configuration document.
type Config struct {
	// Scheduler tunes the cooperative preemption hook.
	Scheduler struct {
		Quantum   int    `yaml:"quantum"`
		QueueKind string `yaml:"queue"` // "inline" or "work_stealing"
	} `yaml:"scheduler"`

	// Debug tunes diagnostics.
	Debug struct {
		Level       string `yaml:"level"` // none, basic, detailed, verbose
		Breakpoints []int  `yaml:"breakpoints"`
	} `yaml:"debug"`
}

// Default returns a Config with the same defaults the packages themselves
// fall back to when unconfigured (scheduler.DefaultQuantum, debug.LevelNone).
func Default() *Config {
	c := &Config{}
	c.Scheduler.Quantum = scheduler.DefaultQuantum
	c.Scheduler.QueueKind = "inline"
	c.Debug.Level = "none"
	return c
}

// Load reads and parses a YAML configuration document from path, filling
// in Default()'s values for anything the document omits.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if c.Scheduler.Quantum <= 0 {
		c.Scheduler.Quantum = scheduler.DefaultQuantum
	}
	return c, nil
}

// DebugLevel parses the configured debug level string into debug.Level,
// defaulting to debug.LevelNone on an unrecognised value.
func (c *Config) DebugLevel() debug.Level {
	switch c.Debug.Level {
	case "basic":
		return debug.LevelBasic
	case "detailed":
		return debug.LevelDetailed
	case "verbose":
		return debug.LevelVerbose
	default:
		return debug.LevelNone
	}
}

// NewScheduler builds a scheduler.Scheduler from the configured quantum and
// queue kind.
func (c *Config) NewScheduler() *scheduler.Scheduler {
	var q scheduler.Queue
	if c.Scheduler.QueueKind == "work_stealing" {
		q = &scheduler.WorkStealingQueue{}
	}
	return scheduler.New(c.Scheduler.Quantum, q)
}
