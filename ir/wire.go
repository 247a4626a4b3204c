package ir

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is bumped whenever the encoded layout of Program changes.
const FormatVersion = 1

const formatMagic = "SVIR"

// envelope wraps an encoded program with a magic tag and a version so that
// readers can reject foreign or stale files.
type envelope struct {
	Magic   string   `cbor:"1,keyasint"`
	Version uint8    `cbor:"2,keyasint"`
	Program *Program `cbor:"3,keyasint"`
}

// cborEncMode uses canonical encoding so equal programs encode to equal
// bytes, which Hash depends on.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ir: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes a program to CBOR bytes.
func Marshal(p *Program) ([]byte, error) {
	data, err := cborEncMode.Marshal(envelope{Magic: formatMagic, Version: FormatVersion, Program: p})
	if err != nil {
		return nil, fmt.Errorf("ir: marshal program: %w", err)
	}
	return data, nil
}

// Unmarshal deserializes a program produced by Marshal.
func Unmarshal(data []byte) (*Program, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("ir: unmarshal program: %w", err)
	}
	if env.Magic != formatMagic {
		return nil, fmt.Errorf("ir: not a program file (magic %q)", env.Magic)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("ir: unsupported format version %d (want %d)", env.Version, FormatVersion)
	}
	if env.Program == nil {
		return nil, fmt.Errorf("ir: program file has no body")
	}
	if !env.Program.Order.Valid() {
		return nil, fmt.Errorf("ir: program file has unknown byte %s", env.Program.Order)
	}
	return env.Program, nil
}

// Hash computes the SHA-256 content hash of a program over its canonical
// encoding. Programs that differ only in routine names hash differently.
func Hash(p *Program) ([32]byte, error) {
	data, err := cborEncMode.Marshal(p)
	if err != nil {
		return [32]byte{}, fmt.Errorf("ir: hash program: %w", err)
	}
	return sha256.Sum256(data), nil
}
