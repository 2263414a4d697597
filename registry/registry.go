package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-scripttest/sandbox"
	"github.com/ethereum-optimism/infra/op-scripttest/types"
	"github.com/ethereum/go-ethereum/log"
)

var _ sandbox.Host = (*Registry)(nil)

// EventSender delivers step events while the module is running.
type EventSender interface {
	Send(e types.Event) error
}

// Config contains registry configuration
type Config struct {
	Log       log.Logger
	Allocator *Allocator
	Sender    EventSender
	Origin    string
}

// Registry collects the tests, steps and hooks a module declares while it is
// evaluated. A registry serves a single run.
type Registry struct {
	config Config

	mu           sync.Mutex
	descriptions *types.TestDescriptions
	functions    []sandbox.Callable
	hooks        HookSet
}

// Snapshot is the content of a registry at the end of module evaluation.
type Snapshot struct {
	Descriptions *types.TestDescriptions
	Functions    []sandbox.Callable
	Hooks        HookSet
}

// NewRegistry creates an empty registry for one run.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Allocator == nil {
		return nil, errors.New("allocator is required")
	}
	if cfg.Sender == nil {
		return nil, errors.New("event sender is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	return &Registry{
		config:       cfg,
		descriptions: types.NewTable[types.TestDescription](),
	}, nil
}

// Origin returns the module origin the registry was created for.
func (r *Registry) Origin() string {
	return r.config.Origin
}

// RegisterTest records a test and returns its id.
func (r *Registry) RegisterTest(reg sandbox.TestRegistration, fn sandbox.Callable) types.ID {
	id := r.config.Allocator.Next()
	desc := types.TestDescription{
		ID:                id,
		Name:              reg.Name,
		Ignore:            reg.Ignore,
		Only:              reg.Only,
		Origin:            r.config.Origin,
		Location:          reg.Location,
		SanitizeOps:       reg.SanitizeOps,
		SanitizeResources: reg.SanitizeResources,
	}

	r.mu.Lock()
	r.descriptions.Insert(id, desc)
	r.functions = append(r.functions, fn)
	r.mu.Unlock()

	r.config.Log.Debug("Registered test", "id", id, "name", reg.Name, "location", reg.Location)
	return id
}

// RegisterStep allocates an id for a step and announces it.
func (r *Registry) RegisterStep(reg sandbox.StepRegistration) types.ID {
	id := r.config.Allocator.Next()
	desc := types.StepDescription{
		ID:       id,
		Name:     reg.Name,
		Origin:   r.config.Origin,
		Location: reg.Location,
		Level:    reg.Level,
		ParentID: reg.ParentID,
		RootID:   reg.RootID,
		RootName: reg.RootName,
	}
	r.send(types.StepRegisterEvent{Description: desc})
	return id
}

// RegisterHook records a lifecycle hook. Unknown kinds are dropped.
func (r *Registry) RegisterHook(kind string, fn sandbox.Callable) {
	hookKind, err := ParseHookKind(kind)
	if err != nil {
		r.config.Log.Warn("Ignoring hook", "origin", r.config.Origin, "err", err)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks.add(hookKind, fn)
}

// StepWait announces that a step started.
func (r *Registry) StepWait(id types.ID) {
	r.send(types.StepWaitEvent{ID: id})
}

// StepResult announces that a step finished.
func (r *Registry) StepResult(id types.ID, result types.StepResult, elapsed time.Duration) {
	r.send(types.StepResultEvent{ID: id, Result: result, Elapsed: elapsed})
}

// Take moves the registered content out of the registry, leaving it empty.
func (r *Registry) Take() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := Snapshot{
		Descriptions: r.descriptions,
		Functions:    r.functions,
		Hooks:        r.hooks,
	}
	r.descriptions = types.NewTable[types.TestDescription]()
	r.functions = nil
	r.hooks = HookSet{}
	return snapshot
}

// Step events are emitted from inside script calls, which have no way to
// handle a delivery failure. A closed channel is detected by the executor on
// its next send.
func (r *Registry) send(e types.Event) {
	if err := r.config.Sender.Send(e); err != nil {
		r.config.Log.Warn("Dropping step event", "kind", e.Kind(), "err", err)
	}
}
