// Command minilang demonstrates the embedding surface: it builds a small
// hand-assembled instruction graph, runs it through the public VM API and
// prints the result. With --debug the VM runs under an instruction-tracing
// debugger, and a profiling report plus a Graphviz dot-graph of the closure
// are printed afterwards.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/minilang/ml/compound"
	"github.com/minilang/ml/config"
	"github.com/minilang/ml/debug"
	"github.com/minilang/ml/methods"
	"github.com/minilang/ml/mlerr"
	"github.com/minilang/ml/opcodes"
	"github.com/minilang/ml/values"
	"github.com/minilang/ml/vm"
)

// resultCaller is the top-level values.Caller an embedder supplies to
// receive a closure's outcome.
type resultCaller struct {
	ctx    *vm.Context
	result *values.Value
	err    *values.Value
}

func (c *resultCaller) Return(v *values.Value) error { c.result = v; return nil }
func (c *resultCaller) Raise(v *values.Value) error  { c.err = v; return nil }
func (c *resultCaller) VMContext() *vm.Context       { return c.ctx }

func (c *resultCaller) MethodsContext() *methods.Context { return c.ctx.Methods }

// demoClosure builds a closure that loads two constants into a tuple and
// returns it: LOAD 1, LOAD "minilang", TUPLE_NEW 2, RETURN.
func demoClosure() *vm.Closure {
	ret := opcodes.New(opcodes.RETURN, 4)
	tuple := opcodes.New(opcodes.TUPLE_NEW, 3, 2, ret)
	loadName := opcodes.New(opcodes.LOAD, 2, values.Str("minilang"), tuple)
	loadNum := opcodes.New(opcodes.LOAD, 1, values.Int(1), loadName)
	info := vm.NewClosureInfo("demo.ml", loadNum, 0, 0, nil, 0, nil)
	return vm.ClosureData(vm.NewClosure(info, nil))
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("minilang: %w", err)
		}
		cfg = loaded
	}

	dbg := cmd.Bool("debug")

	cl := demoClosure()

	// --debug implies at least detailed diagnostics so the instruction
	// trace and profile fill even with no config file present.
	level := cfg.DebugLevel()
	if dbg && level < debug.LevelDetailed {
		level = debug.LevelDetailed
	}
	var debugger *debug.Debugger
	if level > debug.LevelNone {
		debugger = debug.New(level, os.Stderr)
		debugger.BreakOnLines(cl.Info.Entry, cfg.Debug.Breakpoints)
	}

	vmCtx := &vm.Context{
		Methods:  methods.NewContext(),
		Sched:    cfg.NewScheduler(),
		Debug:    dbg,
		Debugger: debugger,
	}
	caller := &resultCaller{ctx: vmCtx}

	if err := vm.Invoke(vmCtx, caller, cl, nil); err != nil {
		return fmt.Errorf("minilang: %w", err)
	}
	if caller.err != nil {
		fmt.Fprintln(os.Stderr, describeError(caller.err))
		os.Exit(1)
	}

	fmt.Println(describeResult(caller.result))

	if debugger != nil {
		fmt.Println()
		fmt.Println(debugger.Profile.Report())
	}
	if dbg {
		fmt.Println()
		fmt.Println(debug.DotGraph(cl.Info.Source, cl.Info.Entry))
	}
	return nil
}

func describeResult(v *values.Value) string {
	if v == nil {
		return "nil"
	}
	if tp := compound.TupleData(v); tp != nil {
		out := "("
		for i := 0; i < tp.Len(); i++ {
			if i > 0 {
				out += ", "
			}
			out += fmt.Sprintf("%v", tp.At(i).Data)
		}
		return out + ")"
	}
	return v.String()
}

func describeError(v *values.Value) string {
	return "uncaught error: " + mlerr.Error(v)
}

func main() {
	app := &cli.Command{
		Name:  "minilang",
		Usage: "minilang embedding-surface demo",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "print a profiling report and the executed closure's dot-graph",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a YAML config file overriding scheduler/debug defaults",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
