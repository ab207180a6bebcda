package ast

import (
	"crypto/sha256"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode uses canonical mode for deterministic encoding, so a cache
// written for the same program is byte-identical across runs.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("ast: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalProgram serializes a validated Program to CBOR bytes.
func MarshalProgram(p *Program) ([]byte, error) {
	return cborEncMode.Marshal(p)
}

// UnmarshalProgram deserializes a Program from CBOR bytes.
func UnmarshalProgram(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("ast: unmarshal program: %w", err)
	}
	return &p, nil
}

// ---------------------------------------------------------------------------
// Program cache
// ---------------------------------------------------------------------------

// cacheEnvelope binds a serialized program to the SHA-256 of the XML source
// it was decoded from.
type cacheEnvelope struct {
	Sum     [sha256.Size]byte
	Program *Program
}

// CachePath returns the sidecar cache path for an XML source path.
func CachePath(sourcePath string) string {
	return sourcePath + ".solc"
}

// WriteCache stores a validated program next to its XML source, keyed by the
// content hash of the source bytes.
func WriteCache(path string, source []byte, p *Program) error {
	data, err := cborEncMode.Marshal(&cacheEnvelope{
		Sum:     sha256.Sum256(source),
		Program: p,
	})
	if err != nil {
		return fmt.Errorf("ast: encode cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("ast: write cache: %w", err)
	}
	return nil
}

// LoadCache reads a cache file and returns the program it holds, but only
// when the recorded hash still matches the source bytes. Any read, decode,
// or hash mismatch returns ok=false; a stale or corrupt cache is never an
// error, the caller just falls back to the XML decode.
func LoadCache(path string, source []byte) (*Program, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var env cacheEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if env.Sum != sha256.Sum256(source) || env.Program == nil {
		return nil, false
	}
	if err := env.Program.Validate(); err != nil {
		return nil, false
	}
	return env.Program, true
}
