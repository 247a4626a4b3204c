// Package manifest handles spacevm.toml configuration.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/spacevm/ir"
	"github.com/chazu/spacevm/vm"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "spacevm.toml"

// ErrInvalid is wrapped by every validation problem.
var ErrInvalid = errors.New("invalid configuration")

// Manifest represents a spacevm.toml configuration.
type Manifest struct {
	VM    VMConfig    `toml:"vm"`
	Trace TraceConfig `toml:"trace"`
	Log   LogConfig   `toml:"log"`

	// Dir is the directory containing the spacevm.toml file (set at load time).
	Dir string `toml:"-"`
}

// VMConfig configures machine construction.
type VMConfig struct {
	ByteOrder    string `toml:"byte-order"`
	FrameSize    int    `toml:"frame-size"`
	MaxCallDepth int    `toml:"max-call-depth"`
	MaxCycles    uint64 `toml:"max-cycles"`
}

// TraceConfig configures the SQLite trace store.
type TraceConfig struct {
	Enabled bool   `toml:"enabled"`
	DB      string `toml:"db"`
}

// LogConfig configures commonlog output.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no file is found.
func Default() *Manifest {
	return &Manifest{
		VM: VMConfig{
			ByteOrder:    "little",
			FrameSize:    vm.DefaultFrameSize,
			MaxCallDepth: vm.DefaultMaxDepth,
		},
		Trace: TraceConfig{DB: "spacevm-trace.db"},
		Log:   LogConfig{Verbosity: 1},
	}
}

// Load parses a spacevm.toml file from the given directory. Keys the file
// leaves out keep their defaults; keys this version does not know are an
// error.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: %w: unknown keys %s", path, ErrInvalid, strings.Join(keys, ", "))
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a spacevm.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Save writes m as spacevm.toml into dir.
func (m *Manifest) Save(dir string) error {
	path := filepath.Join(dir, FileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return f.Close()
}

// Validate checks value ranges and reports every problem together.
func (m *Manifest) Validate() error {
	var errs []error
	if _, err := ir.ParseByteOrder(m.VM.ByteOrder); err != nil {
		errs = append(errs, fmt.Errorf("%w: vm.byte-order: %v", ErrInvalid, err))
	}
	if m.VM.FrameSize <= 0 || m.VM.FrameSize > vm.SpaceSize {
		errs = append(errs, fmt.Errorf("%w: vm.frame-size %d not in 1..%d", ErrInvalid, m.VM.FrameSize, vm.SpaceSize))
	}
	if m.VM.MaxCallDepth <= 0 {
		errs = append(errs, fmt.Errorf("%w: vm.max-call-depth must be positive", ErrInvalid))
	}
	if m.Trace.Enabled && m.Trace.DB == "" {
		errs = append(errs, fmt.Errorf("%w: trace.db is required when tracing is enabled", ErrInvalid))
	}
	return errors.Join(errs...)
}

// Order returns the configured byte order.
func (m *Manifest) Order() ir.ByteOrder {
	order, err := ir.ParseByteOrder(m.VM.ByteOrder)
	if err != nil {
		return ir.LittleEndian
	}
	return order
}

// VMOptions converts the [vm] table into machine options.
func (m *Manifest) VMOptions() []vm.Option {
	return []vm.Option{
		vm.WithFrameSize(m.VM.FrameSize),
		vm.WithMaxDepth(m.VM.MaxCallDepth),
		vm.WithMaxCycles(m.VM.MaxCycles),
	}
}

// TracePath returns the trace database path. Relative paths are resolved
// against the manifest directory.
func (m *Manifest) TracePath() string {
	return m.resolve(m.Trace.DB)
}

// LogPath returns the log file path, or "" for stderr.
func (m *Manifest) LogPath() string {
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
