package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-scripttest/types"
)

func TestFilter_Select(t *testing.T) {
	tests := []types.TestDescription{
		{ID: 0, Name: "parse header"},
		{ID: 1, Name: "parse body"},
		{ID: 2, Name: "render"},
	}

	cases := []struct {
		name        string
		expr        string
		tests       []types.TestDescription
		want        []int
		filteredOut int
		usedOnly    bool
	}{
		{name: "empty matches all", expr: "", tests: tests, want: []int{0, 1, 2}},
		{name: "substring", expr: "parse", tests: tests, want: []int{0, 1}, filteredOut: 1},
		{name: "regexp", expr: "/^render$/", tests: tests, want: []int{2}, filteredOut: 2},
		{
			name: "only wins over plain tests",
			expr: "",
			tests: []types.TestDescription{
				{ID: 0, Name: "a"},
				{ID: 1, Name: "b", Only: true},
				{ID: 2, Name: "c", Only: true},
			},
			want:        []int{1, 2},
			filteredOut: 1,
			usedOnly:    true,
		},
		{
			name: "only combined with a name filter",
			expr: "c",
			tests: []types.TestDescription{
				{ID: 0, Name: "c plain"},
				{ID: 1, Name: "b", Only: true},
				{ID: 2, Name: "c", Only: true},
			},
			want:        []int{2},
			filteredOut: 2,
			usedOnly:    true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFilter(tc.expr)
			require.NoError(t, err)
			sel := f.Select(tc.tests)
			assert.Equal(t, tc.want, sel.Indexes)
			assert.Equal(t, tc.filteredOut, sel.FilteredOut)
			assert.Equal(t, tc.usedOnly, sel.UsedOnly)
		})
	}
}

func TestFilter_Nil(t *testing.T) {
	var f *Filter
	assert.True(t, f.Includes("anything"))

	sel := f.Select([]types.TestDescription{{Name: "a"}, {Name: "b"}})
	assert.Equal(t, []int{0, 1}, sel.Indexes)
	assert.Zero(t, sel.FilteredOut)
	assert.False(t, sel.UsedOnly)

	sel = f.Select([]types.TestDescription{{Name: "a"}, {Name: "b", Only: true}, {Name: "c"}})
	assert.Equal(t, []int{1}, sel.Indexes)
	assert.Equal(t, 2, sel.FilteredOut)
	assert.True(t, sel.UsedOnly)

	assert.Empty(t, f.Select(nil).Indexes)
}

func TestNewFilter_InvalidRegexp(t *testing.T) {
	_, err := NewFilter("/[/")
	assert.Error(t, err)
}
