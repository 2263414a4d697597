package runner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

// Filter selects the tests of a module that are run.
//
// When any test is marked only, every other test is filtered out and the plan
// reports usedOnly. The name expression is applied afterwards: an expression
// wrapped in slashes is a regular expression, anything else is a substring.
type Filter struct {
	substring string
	pattern   *regexp.Regexp
}

// NewFilter parses a name expression. An empty expression matches every test.
func NewFilter(expr string) (*Filter, error) {
	f := &Filter{}
	if len(expr) >= 2 && strings.HasPrefix(expr, "/") && strings.HasSuffix(expr, "/") {
		re, err := regexp.Compile(expr[1 : len(expr)-1])
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
		}
		f.pattern = re
		return f, nil
	}
	f.substring = expr
	return f, nil
}

// Includes reports whether a test name passes the name expression.
func (f *Filter) Includes(name string) bool {
	if f == nil {
		return true
	}
	if f.pattern != nil {
		return f.pattern.MatchString(name)
	}
	return strings.Contains(name, f.substring)
}

// Selection is the outcome of applying a filter to a module's tests.
type Selection struct {
	// Indexes into the registered tests, in registration order.
	Indexes     []int
	FilteredOut int
	UsedOnly    bool
}

// Select applies the filter. A nil filter has no name expression but still
// honors only.
func (f *Filter) Select(tests []types.TestDescription) Selection {
	var sel Selection
	for _, test := range tests {
		if test.Only {
			sel.UsedOnly = true
			break
		}
	}
	for i, test := range tests {
		if sel.UsedOnly && !test.Only {
			continue
		}
		if !f.Includes(test.Name) {
			continue
		}
		sel.Indexes = append(sel.Indexes, i)
	}
	sel.FilteredOut = len(tests) - len(sel.Indexes)
	return sel
}
