// spacevm CLI - runs, steps, disassembles and encodes IR programs
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/spacevm/ir"
	"github.com/chazu/spacevm/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("spacevm.cli")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// cli carries what every subcommand needs.
type cli struct {
	cfg    *manifest.Manifest
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) errorf(format string, args ...any) int {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
	return 1
}

// run is main without the process exit, so tests can drive it.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("spacevm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbose := fs.Int("v", -1, "Log verbosity (overrides spacevm.toml)")
	configDir := fs.String("C", ".", "Directory to search for spacevm.toml")
	order := fs.String("order", "", "Byte order for demo programs: little or big")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: spacevm [options] <command> [args]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  run [-trace] [-profile] [-max-cycles N] <target>   Run to completion\n")
		fmt.Fprintf(stderr, "  step [-n N] [-break R:PC] <target>               Step and print machine state\n")
		fmt.Fprintf(stderr, "  dis <target>                                     Disassemble\n")
		fmt.Fprintf(stderr, "  encode <target> <out.ir>                         Write a program file\n")
		fmt.Fprintf(stderr, "  traces [-steps RUN-ID]                           List recorded runs\n")
		fmt.Fprintf(stderr, "  demos                                            List demo programs\n")
		fmt.Fprintf(stderr, "  init                                             Write a default spacevm.toml\n")
		fmt.Fprintf(stderr, "\nA target is a program file or demo:NAME.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading spacevm.toml: %v\n", err)
		return 1
	}
	if cfg == nil {
		cfg = manifest.Default()
	}
	cfg.ApplyEnv()
	if *verbose >= 0 {
		cfg.Log.Verbosity = *verbose
	}
	if *order != "" {
		cfg.VM.ByteOrder = *order
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	configureLogging(cfg)

	c := &cli{cfg: cfg, stdout: stdout, stderr: stderr}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	log.Debugf("command %s %s", cmd, strings.Join(rest, " "))

	switch cmd {
	case "run":
		return c.runCommand(rest)
	case "step":
		return c.stepCommand(rest)
	case "dis":
		return c.disCommand(rest)
	case "encode":
		return c.encodeCommand(rest)
	case "traces":
		return c.tracesCommand(rest)
	case "demos":
		for _, name := range demoNames() {
			fmt.Fprintf(stdout, "  %-10s %s\n", name, demos[name].about)
		}
		return 0
	case "init":
		if err := manifest.Default().Save("."); err != nil {
			return c.errorf("%v", err)
		}
		fmt.Fprintf(stdout, "Wrote %s\n", manifest.FileName)
		return 0
	}
	return c.errorf("unknown command %q", cmd)
}

func configureLogging(cfg *manifest.Manifest) {
	var path *string
	if p := cfg.LogPath(); p != "" {
		path = &p
	}
	commonlog.Configure(cfg.Log.Verbosity, path)
}

// loadTarget resolves demo:NAME or reads a program file. result is set only
// for demos.
func (c *cli) loadTarget(target string) (*ir.Program, *demoResult, error) {
	if name, ok := strings.CutPrefix(target, "demo:"); ok {
		d, found := demos[name]
		if !found {
			return nil, nil, fmt.Errorf("unknown demo %q (have %s)", name, strings.Join(demoNames(), ", "))
		}
		prog, sym, err := d.build(c.cfg.Order())
		if err != nil {
			return nil, nil, fmt.Errorf("building demo %s: %w", name, err)
		}
		return prog, &demoResult{sym: sym, want: d.want}, nil
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read %s: %w", target, err)
	}
	prog, err := ir.Unmarshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", target, err)
	}
	if err := prog.Validate(); err != nil {
		log.Warningf("%s: %s", target, err)
	}
	return prog, nil, nil
}
