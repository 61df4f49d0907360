// Package debug implements minilang's diagnostic tooling: an instruction
// tracer/breakpoint debugger and a Graphviz dot-graph emitter for a
// closure's instruction graph.
package debug

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/minilang/ml/opcodes"
)

// Level selects how much diagnostic work the debugger performs.
type Level int

const (
	LevelNone Level = iota
	LevelBasic
	LevelDetailed
	LevelVerbose
)

// InstructionTrace records one executed instruction, keyed by graph node
// pointer since instructions have no stable flat-array index.
type InstructionTrace struct {
	Timestamp  time.Time
	Inst       *opcodes.Instruction
	OpcodeName string
	StackSize  int
	Duration   time.Duration
}

// Debugger traces instruction execution, holds breakpoints keyed by
// instruction identity, and accumulates profiling data.
type Debugger struct {
	Level           Level
	Output          io.Writer
	BreakPoints     map[*opcodes.Instruction]bool
	WatchVariables  map[string]bool
	InstructionLog  []InstructionTrace
	MaxTraceEntries int
	Profile         *Profile
}

// New creates a Debugger at the given level. A nil output defaults to
// os.Stderr.
func New(level Level, output io.Writer) *Debugger {
	if output == nil {
		output = os.Stderr
	}
	return &Debugger{
		Level:           level,
		Output:          output,
		BreakPoints:     map[*opcodes.Instruction]bool{},
		WatchVariables:  map[string]bool{},
		InstructionLog:  make([]InstructionTrace, 0, 1000),
		MaxTraceEntries: 10000,
		Profile:         NewProfile(),
	}
}

// SetBreakpoint marks inst as a breakpoint.
func (d *Debugger) SetBreakpoint(inst *opcodes.Instruction) {
	d.BreakPoints[inst] = true
	if d.Level >= LevelBasic {
		fmt.Fprintf(d.Output, "[debugger] breakpoint set at %s\n", inst.Op)
	}
}

// RemoveBreakpoint clears a previously set breakpoint.
func (d *Debugger) RemoveBreakpoint(inst *opcodes.Instruction) {
	delete(d.BreakPoints, inst)
}

// AtBreakpoint reports whether inst is a set breakpoint.
func (d *Debugger) AtBreakpoint(inst *opcodes.Instruction) bool {
	return d.BreakPoints[inst]
}

// BreakOnLines sets a breakpoint on every instruction reachable from entry
// whose source line is in lines, the form breakpoints take in an
// embedder's configuration file.
func (d *Debugger) BreakOnLines(entry *opcodes.Instruction, lines []int) {
	if entry == nil || len(lines) == 0 {
		return
	}
	want := map[int]bool{}
	for _, l := range lines {
		want[l] = true
	}
	seen := map[*opcodes.Instruction]bool{}
	var walk func(in *opcodes.Instruction)
	walk = func(in *opcodes.Instruction) {
		if in == nil || seen[in] {
			return
		}
		seen[in] = true
		if want[in.Line] {
			d.BreakPoints[in] = true
		}
		for _, p := range in.Params {
			if succ, ok := p.(*opcodes.Instruction); ok {
				walk(succ)
			}
		}
	}
	walk(entry)
}

// Watch adds a variable name to the watch list (surfaced by an embedder's
// own slot-name table; the debugger itself carries no name->slot mapping
// since that lives in vm.ClosureInfo's decl chain).
func (d *Debugger) Watch(name string) {
	d.WatchVariables[name] = true
}

// Trace records one instruction's execution. Below LevelDetailed this is a
// no-op.
func (d *Debugger) Trace(inst *opcodes.Instruction, stackSize int, dur time.Duration) {
	if d.Level < LevelDetailed {
		return
	}
	t := InstructionTrace{
		Timestamp:  time.Now(),
		Inst:       inst,
		OpcodeName: inst.Op.String(),
		StackSize:  stackSize,
		Duration:   dur,
	}
	d.InstructionLog = append(d.InstructionLog, t)
	if len(d.InstructionLog) > d.MaxTraceEntries {
		d.InstructionLog = d.InstructionLog[1000:]
	}
	d.Profile.RecordInstruction(t.OpcodeName, dur)
	if d.Level >= LevelVerbose {
		fmt.Fprintf(d.Output, "[trace] %-14s sp:%d dur:%v\n", t.OpcodeName, t.StackSize, t.Duration)
	}
}
