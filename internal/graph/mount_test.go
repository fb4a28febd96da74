package graph

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountTable_RoutesByTopLevelName(t *testing.T) {
	base := NewMemoryStore()
	custom := NewMemoryStore()
	m := NewMountTable(base)
	require.NoError(t, m.Mount("appdataroot", custom))

	n, err := m.NewFolder("appdataroot/appdata_x")
	require.NoError(t, err)
	assert.Equal(t, "appdataroot/appdata_x", n.Path)

	inner, err := custom.Get("appdata_x")
	require.NoError(t, err)
	assert.Equal(t, inner.ID, n.ID)

	_, err = base.Get("appdataroot/appdata_x")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := m.Get("/appdataroot/appdata_x/")
	require.NoError(t, err)
	assert.Equal(t, "appdataroot/appdata_x", got.Path)
}

func TestMountTable_RootListingIncludesMounts(t *testing.T) {
	base := NewMemoryStore()
	_, err := base.NewFolder("plain")
	require.NoError(t, err)
	m := NewMountTable(base)
	require.NoError(t, m.Mount("appdataroot", NewBillyTree(memfs.New())))

	children, err := m.ListChildren("/")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "plain", children[0].Name())
	assert.Equal(t, "appdataroot", children[1].Name())
	assert.True(t, children[1].IsFolder())
}

func TestMountTable_MountShadowsBaseEntry(t *testing.T) {
	base := NewMemoryStore()
	_, err := base.NewFolder("appdataroot")
	require.NoError(t, err)
	m := NewMountTable(base)
	require.NoError(t, m.Mount("appdataroot", NewMemoryStore()))

	children, err := m.ListChildren("")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "appdataroot", children[0].Path)
}

func TestMountTable_ListInsideMount(t *testing.T) {
	custom := NewMemoryStore()
	_, err := custom.NewFolder("a")
	require.NoError(t, err)
	_, err = custom.NewFolder("a/b")
	require.NoError(t, err)
	m := NewMountTable(NewMemoryStore())
	require.NoError(t, m.Mount("appdataroot", custom))

	children, err := m.ListChildren("appdataroot/a")
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "appdataroot/a/b", children[0].Path)
}

func TestMountTable_MountErrors(t *testing.T) {
	m := NewMountTable(NewMemoryStore())
	require.NoError(t, m.Mount("appdataroot", NewMemoryStore()))

	assert.ErrorIs(t, m.Mount("appdataroot", NewMemoryStore()), ErrAlreadyExists)
	assert.Error(t, m.Mount("", NewMemoryStore()))
	assert.Error(t, m.Mount("a/b", NewMemoryStore()))

	_, err := m.NewFolder("appdataroot")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestMountTable_IDsAreScopedToBackend(t *testing.T) {
	base := NewBillyTree(memfs.New())
	custom := NewBillyTree(memfs.New())
	m := NewMountTable(base)
	require.NoError(t, m.Mount("appdataroot", custom))

	outer, err := m.NewFolder("appdata_x")
	require.NoError(t, err)
	inner, err := m.NewFolder("appdataroot/appdata_x")
	require.NoError(t, err)

	assert.Equal(t, outer.ID, inner.ID, "billy ids hash the path inside their own tree")
	assert.NotEqual(t, outer.Path, inner.Path)
}
