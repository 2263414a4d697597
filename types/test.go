package types

import "fmt"

// ID identifies a registered test or test step. Tests and steps share a
// single namespace for the lifetime of the process.
type ID uint64

// TestLocation points at the call site that registered a test or step.
type TestLocation struct {
	FileName     string `json:"fileName"`
	LineNumber   uint32 `json:"lineNumber"`
	ColumnNumber uint32 `json:"columnNumber"`
}

func (l TestLocation) String() string {
	return fmt.Sprintf("%s:%d:%d", l.FileName, l.LineNumber, l.ColumnNumber)
}

// TestDescription describes a test registered by a script during module evaluation.
type TestDescription struct {
	ID                ID
	Name              string
	Ignore            bool
	Only              bool
	Origin            string
	Location          TestLocation
	SanitizeOps       bool
	SanitizeResources bool
}

// StepDescription describes a (possibly nested) step inside a test.
type StepDescription struct {
	ID       ID
	Name     string
	Origin   string
	Location TestLocation
	Level    int
	ParentID ID
	RootID   ID
	RootName string
}

// FailureDescription identifies the test or step a failure belongs to.
type FailureDescription struct {
	ID       ID
	Name     string
	Origin   string
	Location TestLocation
}

// FailureDescription returns the failure identity of a test.
func (d *TestDescription) FailureDescription() FailureDescription {
	return FailureDescription{ID: d.ID, Name: d.Name, Origin: d.Origin, Location: d.Location}
}

// FailureDescription returns the failure identity of a step. Step names are
// qualified with their root test so they can be told apart in a summary.
func (d *StepDescription) FailureDescription() FailureDescription {
	return FailureDescription{
		ID:       d.ID,
		Name:     fmt.Sprintf("%s ... %s", d.RootName, d.Name),
		Origin:   d.Origin,
		Location: d.Location,
	}
}

// Plan announces how many tests a run is going to execute.
type Plan struct {
	Origin      string
	Total       int
	FilteredOut int
	UsedOnly    bool
}

// Table is an insertion-ordered collection keyed by ID.
type Table[T any] struct {
	order []ID
	items map[ID]T
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{items: make(map[ID]T)}
}

// Insert adds or replaces the entry for id. Replacing keeps the original position.
func (t *Table[T]) Insert(id ID, item T) {
	if t.items == nil {
		t.items = make(map[ID]T)
	}
	if _, exists := t.items[id]; !exists {
		t.order = append(t.order, id)
	}
	t.items[id] = item
}

// Get returns the entry for id.
func (t *Table[T]) Get(id ID) (T, bool) {
	item, ok := t.items[id]
	return item, ok
}

// Len returns the number of entries.
func (t *Table[T]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.order)
}

// IDs returns the ids in insertion order.
func (t *Table[T]) IDs() []ID {
	if t == nil {
		return nil
	}
	ids := make([]ID, len(t.order))
	copy(ids, t.order)
	return ids
}

// Each calls fn for every entry in insertion order until fn returns false.
func (t *Table[T]) Each(fn func(id ID, item T) bool) {
	if t == nil {
		return
	}
	for _, id := range t.order {
		if !fn(id, t.items[id]) {
			return
		}
	}
}

// TestDescriptions holds the tests registered by one module, in registration order.
type TestDescriptions = Table[TestDescription]

// StepDescriptions holds step descriptions in registration order.
type StepDescriptions = Table[StepDescription]
