package registry

import (
	"fmt"

	"github.com/ethereum-optimism/infra/op-scripttest/sandbox"
)

// HookKind is one of the four lifecycle hook kinds.
type HookKind int

const (
	HookBeforeAll HookKind = iota
	HookBeforeEach
	HookAfterEach
	HookAfterAll
)

var hookNames = map[HookKind]string{
	HookBeforeAll:  "beforeAll",
	HookBeforeEach: "beforeEach",
	HookAfterEach:  "afterEach",
	HookAfterAll:   "afterAll",
}

func (k HookKind) String() string {
	if name, ok := hookNames[k]; ok {
		return name
	}
	return fmt.Sprintf("HookKind(%d)", int(k))
}

// ParseHookKind maps a script-facing hook name to its kind.
func ParseHookKind(name string) (HookKind, error) {
	for kind, n := range hookNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown hook kind %q", name)
}

// HookSet holds the lifecycle hooks of a module in registration order.
type HookSet struct {
	BeforeAll  []sandbox.Callable
	BeforeEach []sandbox.Callable
	AfterEach  []sandbox.Callable
	AfterAll   []sandbox.Callable
}

func (h *HookSet) add(kind HookKind, fn sandbox.Callable) {
	switch kind {
	case HookBeforeAll:
		h.BeforeAll = append(h.BeforeAll, fn)
	case HookBeforeEach:
		h.BeforeEach = append(h.BeforeEach, fn)
	case HookAfterEach:
		h.AfterEach = append(h.AfterEach, fn)
	case HookAfterAll:
		h.AfterAll = append(h.AfterAll, fn)
	}
}

// Len returns the total number of hooks.
func (h *HookSet) Len() int {
	return len(h.BeforeAll) + len(h.BeforeEach) + len(h.AfterEach) + len(h.AfterAll)
}
