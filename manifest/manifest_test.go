package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/spacevm/ir"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[vm]
byte-order = "big"
frame-size = 256
max-call-depth = 32
max-cycles = 100000

[trace]
enabled = true
db = "traces/run.db"

[log]
verbosity = 2
file = "spacevm.log"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Order() != ir.BigEndian {
		t.Errorf("byte order = %s, want big", m.Order())
	}
	if m.VM.FrameSize != 256 {
		t.Errorf("frame size = %d, want 256", m.VM.FrameSize)
	}
	if m.VM.MaxCallDepth != 32 {
		t.Errorf("max call depth = %d, want 32", m.VM.MaxCallDepth)
	}
	if m.VM.MaxCycles != 100000 {
		t.Errorf("max cycles = %d, want 100000", m.VM.MaxCycles)
	}
	if !m.Trace.Enabled {
		t.Error("trace enabled = false, want true")
	}
	if want := filepath.Join(m.Dir, "traces", "run.db"); m.TracePath() != want {
		t.Errorf("trace path = %q, want %q", m.TracePath(), want)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if want := filepath.Join(m.Dir, "spacevm.log"); m.LogPath() != want {
		t.Errorf("log path = %q, want %q", m.LogPath(), want)
	}
	if len(m.VMOptions()) != 3 {
		t.Errorf("VMOptions returned %d options", len(m.VMOptions()))
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[vm]
max-cycles = 10
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := Default()
	if m.VM.FrameSize != def.VM.FrameSize || m.VM.MaxCallDepth != def.VM.MaxCallDepth {
		t.Errorf("vm = %+v, want defaults for omitted keys", m.VM)
	}
	if m.Order() != ir.LittleEndian {
		t.Errorf("byte order = %s, want little", m.Order())
	}
	if m.Trace.Enabled || m.Trace.DB != def.Trace.DB {
		t.Errorf("trace = %+v", m.Trace)
	}
	if m.LogPath() != "" {
		t.Errorf("log path = %q, want stderr", m.LogPath())
	}
}

func TestLoadManifestRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"syntax", "[vm\nframe-size = 1", false},
		{"unknown key", "[vm]\nregisters = 128\n", true},
		{"byte order", "[vm]\nbyte-order = \"middle\"\n", true},
		{"frame size", "[vm]\nframe-size = 0\n", true},
		{"frame too big", "[vm]\nframe-size = 70000\n", true},
		{"depth", "[vm]\nmax-call-depth = -1\n", true},
		{"trace without db", "[trace]\nenabled = true\ndb = \"\"\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("Load succeeded")
			}
			if errors.Is(err, ErrInvalid) != tt.invalid {
				t.Errorf("errors.Is(err, ErrInvalid) = %v, want %v (%v)", !tt.invalid, tt.invalid, err)
			}
		})
	}
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil {
		t.Error("expected error for missing spacevm.toml")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[vm]\nframe-size = 64\n")

	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.VM.FrameSize != 64 {
		t.Errorf("frame size = %d, want 64", m.VM.FrameSize)
	}
	absRoot, _ := filepath.Abs(root)
	if m.Dir != absRoot {
		t.Errorf("dir = %q, want %q", m.Dir, absRoot)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when none found")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := Default()
	m.VM.ByteOrder = "big"
	m.VM.MaxCycles = 500
	if err := m.Save(dir); err != nil {
		t.Fatal(err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if got.VM != m.VM || got.Trace != m.Trace || got.Log != m.Log {
		t.Errorf("loaded %+v, saved %+v", got, m)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvByteOrder, "be")
	t.Setenv(EnvFrameSize, "128")
	t.Setenv(EnvMaxCycles, "77")
	t.Setenv(EnvTrace, "true")
	t.Setenv(EnvTraceDB, "/tmp/t.db")
	t.Setenv(EnvLogVerbosity, "not-a-number")

	m := Default()
	m.ApplyEnv()

	if m.Order() != ir.BigEndian {
		t.Errorf("byte order = %s, want big", m.Order())
	}
	if m.VM.FrameSize != 128 {
		t.Errorf("frame size = %d, want 128", m.VM.FrameSize)
	}
	if m.VM.MaxCycles != 77 {
		t.Errorf("max cycles = %d, want 77", m.VM.MaxCycles)
	}
	if m.VM.MaxCallDepth != Default().VM.MaxCallDepth {
		t.Errorf("unset variable changed max call depth to %d", m.VM.MaxCallDepth)
	}
	if !m.Trace.Enabled || m.TracePath() != "/tmp/t.db" {
		t.Errorf("trace = %+v", m.Trace)
	}
	if m.Log.Verbosity != Default().Log.Verbosity {
		t.Errorf("unparsable verbosity changed value to %d", m.Log.Verbosity)
	}
}
