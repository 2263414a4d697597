package jsruntime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramCache(t *testing.T) {
	cache, err := NewProgramCache(2)
	require.NoError(t, err)

	first, err := cache.Compile("file:///a.js", []byte(`1 + 1`))
	require.NoError(t, err)
	again, err := cache.Compile("file:///a.js", []byte(`1 + 1`))
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, cache.Len())

	changed, err := cache.Compile("file:///a.js", []byte(`2 + 2`))
	require.NoError(t, err)
	assert.NotSame(t, first, changed)
	assert.Equal(t, 2, cache.Len())

	// Same content under another origin is a separate entry and evicts the oldest.
	_, err = cache.Compile("file:///b.js", []byte(`1 + 1`))
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
	evicted, err := cache.Compile("file:///a.js", []byte(`1 + 1`))
	require.NoError(t, err)
	assert.NotSame(t, first, evicted)
}

func TestProgramCache_SyntaxError(t *testing.T) {
	cache, err := NewProgramCache(0)
	require.NoError(t, err)
	_, err = cache.Compile("file:///broken.js", []byte(`function (`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file:///broken.js")
	assert.Zero(t, cache.Len())
}

func TestProgramCache_Nil(t *testing.T) {
	var cache *ProgramCache
	prg, err := cache.Compile("file:///a.js", []byte(`1`))
	require.NoError(t, err)
	assert.NotNil(t, prg)
	assert.Zero(t, cache.Len())
}
