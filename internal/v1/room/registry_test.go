package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateAndLookup(t *testing.T) {
	reg := NewRegistry(8, "main")

	got, err := reg.Lookup("main")
	require.NoError(t, err)
	assert.Equal(t, "main", got.Name)

	created, err := reg.Create("tech")
	require.NoError(t, err)
	assert.Equal(t, "tech", created.Name)

	found, err := reg.Lookup("tech")
	require.NoError(t, err)
	assert.Same(t, created, found)
}

func TestRegistryCreateDuplicate(t *testing.T) {
	reg := NewRegistry(8, "main")

	_, err := reg.Create("main")
	assert.ErrorIs(t, err, ErrExists)

	// The original room is untouched.
	r, err := reg.Lookup("main")
	require.NoError(t, err)
	assert.Equal(t, "main", r.Name)
}

func TestRegistryLookupMissing(t *testing.T) {
	reg := NewRegistry(8)

	_, err := reg.Lookup("nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryList(t *testing.T) {
	reg := NewRegistry(8, "main")
	_, err := reg.Create("tech")
	require.NoError(t, err)
	_, err = reg.Create("random")
	require.NoError(t, err)

	names := reg.List()
	assert.Equal(t, 3, names.Len())
	assert.True(t, names.HasAll("main", "tech", "random"))
}
