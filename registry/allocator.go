package registry

import (
	"sync/atomic"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

// Global is the process-wide allocator. It is initialized at program start
// and never reset, so ids stay unique across every module run in the process.
var Global = NewAllocator()

// Allocator hands out test and step identifiers. It is safe for concurrent use.
type Allocator struct {
	next atomic.Uint64
}

// NewAllocator returns an allocator whose first id is 0.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next allocates a new identifier.
func (a *Allocator) Next() types.ID {
	return types.ID(a.next.Add(1) - 1)
}
