package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/spacevm/compiler"
	"github.com/chazu/spacevm/ir"
	"github.com/chazu/spacevm/trace"
	"github.com/chazu/spacevm/vm"
)

// demoResult says where a demo leaves its answer.
type demoResult struct {
	sym  compiler.Symbol
	want uint16
}

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func (c *cli) runCommand(args []string) int {
	fs := c.flagSet("run")
	traceOn := fs.Bool("trace", c.cfg.Trace.Enabled, "Record the run in the trace database")
	profile := fs.Bool("profile", false, "Print cycle counts per routine and op")
	maxCycles := fs.Uint64("max-cycles", c.cfg.VM.MaxCycles, "Stop after N cycles (0 = no limit)")
	dump := fs.Int("dump", 16, "Bytes of static memory to print for program files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		return c.errorf("run takes exactly one target")
	}

	prog, result, err := c.loadTarget(fs.Arg(0))
	if err != nil {
		return c.errorf("%v", err)
	}

	opts := append(c.cfg.VMOptions(), vm.WithMaxCycles(*maxCycles))
	var prof *vm.Profiler
	if *profile {
		prof = vm.NewProfiler()
		opts = append(opts, vm.WithTracer(prof))
	}

	var rec *trace.Run
	if *traceOn {
		store, err := trace.Open(c.cfg.TracePath())
		if err != nil {
			return c.errorf("%v", err)
		}
		defer store.Close()
		hash, err := ir.Hash(prog)
		if err != nil {
			return c.errorf("%v", err)
		}
		entry := ""
		if main := prog.Main(); main != nil {
			entry = main.Name
		}
		if rec, err = store.Begin(hash, entry); err != nil {
			return c.errorf("%v", err)
		}
		opts = append(opts, vm.WithTracer(rec))
	}

	m := vm.New(prog, opts...)
	mem, runErr := m.Run()

	if rec != nil {
		if err := rec.Finish(trace.ResultOf(m)); err != nil {
			log.Errorf("trace: %s", err)
		}
		fmt.Fprintf(c.stdout, "trace: %s\n", rec.ID)
	}
	if prof != nil {
		fmt.Fprint(c.stdout, prof.Report(prog))
	}

	fmt.Fprintf(c.stdout, "%s after %d cycles\n", m.State(), m.Cycles())
	if runErr != nil {
		if errors.Is(runErr, vm.ErrFault) {
			log.Errorf("%s", runErr)
		}
		return c.errorf("%v", runErr)
	}

	if result != nil {
		got := readSymbol(m, result.sym)
		fmt.Fprintf(c.stdout, "%s = %d\n", result.sym.Name, got)
		if got != result.want {
			return c.errorf("%s = %d, want %d", result.sym.Name, got, result.want)
		}
		return 0
	}
	n := *dump
	if n < 0 || n > len(mem.Static) {
		n = len(mem.Static)
	}
	text, _ := vm.NewInspector(m).HexDump(ir.Static, 0, n)
	fmt.Fprint(c.stdout, text)
	return 0
}

// ---------------------------------------------------------------------------
// step
// ---------------------------------------------------------------------------

func (c *cli) stepCommand(args []string) int {
	fs := c.flagSet("step")
	limit := fs.Int("n", 1000, "Maximum number of commands to issue")
	breaks := fs.String("break", "", "Comma-separated breakpoints ROUTINE:PC; run between them instead of stepping")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		return c.errorf("step takes exactly one target")
	}
	prog, _, err := c.loadTarget(fs.Arg(0))
	if err != nil {
		return c.errorf("%v", err)
	}
	locs, err := parseBreakpoints(*breaks)
	if err != nil {
		return c.errorf("%v", err)
	}

	m := vm.New(prog, c.cfg.VMOptions()...)
	dbg := vm.NewDebugger(m)
	for _, loc := range locs {
		dbg.SetBreakpoint(loc.Routine, loc.PC)
	}
	in := vm.NewInspector(m)
	fmt.Fprintln(c.stdout, in.Snapshot())

	for i := 0; i < *limit; i++ {
		var ev vm.DebugEvent
		if len(locs) > 0 {
			ev = dbg.Continue()
		} else {
			ev = dbg.StepInto()
		}
		fmt.Fprintln(c.stdout, in.Snapshot())
		switch ev.Type {
		case vm.EventStopped:
			return 0
		case vm.EventFault:
			return c.errorf("%v", ev.Fault)
		case vm.EventLimit:
			return c.errorf("cycle limit reached")
		}
	}
	return 0
}

func parseBreakpoints(s string) ([]vm.Location, error) {
	if s == "" {
		return nil, nil
	}
	var out []vm.Location
	for _, part := range strings.Split(s, ",") {
		r, pc, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("breakpoint %q: want ROUTINE:PC", part)
		}
		routine, err := strconv.Atoi(r)
		if err != nil {
			return nil, fmt.Errorf("breakpoint %q: %w", part, err)
		}
		at, err := strconv.Atoi(pc)
		if err != nil {
			return nil, fmt.Errorf("breakpoint %q: %w", part, err)
		}
		out = append(out, vm.Location{Routine: routine, PC: at})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// dis, encode
// ---------------------------------------------------------------------------

func (c *cli) disCommand(args []string) int {
	if len(args) != 1 {
		return c.errorf("dis takes exactly one target")
	}
	prog, _, err := c.loadTarget(args[0])
	if err != nil {
		return c.errorf("%v", err)
	}
	fmt.Fprint(c.stdout, prog.Disassemble())
	return 0
}

func (c *cli) encodeCommand(args []string) int {
	if len(args) != 2 {
		return c.errorf("encode takes a target and an output path")
	}
	prog, _, err := c.loadTarget(args[0])
	if err != nil {
		return c.errorf("%v", err)
	}
	data, err := ir.Marshal(prog)
	if err != nil {
		return c.errorf("%v", err)
	}
	if err := os.WriteFile(args[1], data, 0644); err != nil {
		return c.errorf("cannot write %s: %v", args[1], err)
	}
	hash, _ := ir.Hash(prog)
	fmt.Fprintf(c.stdout, "Wrote %s (%d bytes, %x)\n", args[1], len(data), hash[:8])
	return 0
}

// ---------------------------------------------------------------------------
// traces
// ---------------------------------------------------------------------------

func (c *cli) tracesCommand(args []string) int {
	fs := c.flagSet("traces")
	steps := fs.String("steps", "", "Print the steps of one run")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	store, err := trace.Open(c.cfg.TracePath())
	if err != nil {
		return c.errorf("%v", err)
	}
	defer store.Close()

	if *steps != "" {
		rows, err := store.Steps(*steps)
		if err != nil {
			return c.errorf("%v", err)
		}
		for _, st := range rows {
			fmt.Fprintf(c.stdout, "%6d  @%d:%04x  %s%s\n", st.Cycle, st.Routine, st.PC, strings.Repeat("  ", st.Depth), st.Stmt)
		}
		return 0
	}

	runs, err := store.Runs()
	if err != nil {
		return c.errorf("%v", err)
	}
	for _, r := range runs {
		fmt.Fprintf(c.stdout, "%s  %.12s  %-8s %-8s %8d", r.ID, r.Program, r.Entry, r.State, r.Cycles)
		if r.Fault != "" {
			fmt.Fprintf(c.stdout, "  %s", r.Fault)
		}
		fmt.Fprintln(c.stdout)
	}
	return 0
}
