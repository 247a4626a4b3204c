package manifest

import (
	"github.com/xyproto/env/v2"
)

// Environment variables that override spacevm.toml.
const (
	EnvByteOrder    = "SPACEVM_BYTE_ORDER"
	EnvFrameSize    = "SPACEVM_FRAME_SIZE"
	EnvMaxCallDepth = "SPACEVM_MAX_CALL_DEPTH"
	EnvMaxCycles    = "SPACEVM_MAX_CYCLES"
	EnvTrace        = "SPACEVM_TRACE"
	EnvTraceDB      = "SPACEVM_TRACE_DB"
	EnvLogVerbosity = "SPACEVM_LOG_VERBOSITY"
	EnvLogFile      = "SPACEVM_LOG_FILE"
)

// ApplyEnv overrides fields whose environment variable is set. Numeric
// variables that do not parse keep the current value.
func (m *Manifest) ApplyEnv() {
	m.VM.ByteOrder = env.Str(EnvByteOrder, m.VM.ByteOrder)
	m.VM.FrameSize = env.Int(EnvFrameSize, m.VM.FrameSize)
	m.VM.MaxCallDepth = env.Int(EnvMaxCallDepth, m.VM.MaxCallDepth)
	if cycles := env.Int(EnvMaxCycles, -1); cycles >= 0 {
		m.VM.MaxCycles = uint64(cycles)
	}
	if env.Has(EnvTrace) {
		m.Trace.Enabled = env.Bool(EnvTrace)
	}
	m.Trace.DB = env.Str(EnvTraceDB, m.Trace.DB)
	m.Log.Verbosity = env.Int(EnvLogVerbosity, m.Log.Verbosity)
	m.Log.File = env.Str(EnvLogFile, m.Log.File)
}
