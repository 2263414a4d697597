package jsruntime

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of compiled modules kept by NewProgramCache(0).
const DefaultCacheSize = 128

// ProgramCache keeps compiled modules so that repeated runs of an unchanged
// file skip parsing. Compiled programs are immutable and may be shared by
// several runtimes.
type ProgramCache struct {
	programs *lru.Cache[string, *goja.Program]
}

// NewProgramCache creates a cache holding at most size programs.
func NewProgramCache(size int) (*ProgramCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	programs, err := lru.New[string, *goja.Program](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create program cache: %w", err)
	}
	return &ProgramCache{programs: programs}, nil
}

// Compile returns the compiled form of source, reusing a previous compilation
// of identical content from the same origin.
func (c *ProgramCache) Compile(origin string, source []byte) (*goja.Program, error) {
	if c == nil {
		return compile(origin, source)
	}
	sum := sha256.Sum256(source)
	key := origin + "#" + hex.EncodeToString(sum[:])
	if prg, ok := c.programs.Get(key); ok {
		return prg, nil
	}
	prg, err := compile(origin, source)
	if err != nil {
		return nil, err
	}
	c.programs.Add(key, prg)
	return prg, nil
}

// Len reports the number of cached programs.
func (c *ProgramCache) Len() int {
	if c == nil {
		return 0
	}
	return c.programs.Len()
}

func compile(origin string, source []byte) (*goja.Program, error) {
	prg, err := goja.Compile(origin, string(source), false)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", origin, err)
	}
	return prg, nil
}
