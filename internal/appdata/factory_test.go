package appdata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/appdata/internal/graph"
)

func TestFactory_OneInstancePerApp(t *testing.T) {
	f := NewFactory(graph.NewMemoryStore(), nil, FactoryConfig{InstanceID: testInstance})

	a1, err := f.Get("contacts")
	require.NoError(t, err)
	a2, err := f.Get("contacts")
	require.NoError(t, err)
	b, err := f.Get("photos")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, []string{"contacts", "photos"}, f.Apps())
}

func TestFactory_SharesNamespaceRoot(t *testing.T) {
	f := NewFactory(graph.NewMemoryStore(), nil, FactoryConfig{InstanceID: testInstance})

	contacts, err := f.Get("contacts")
	require.NoError(t, err)
	photos, err := f.Get("photos")
	require.NoError(t, err)

	c, err := contacts.NamespaceRoot()
	require.NoError(t, err)
	p, err := photos.NamespaceRoot()
	require.NoError(t, err)
	assert.Equal(t, c.ID(), p.ID())

	cid, err := contacts.ID()
	require.NoError(t, err)
	pid, err := photos.ID()
	require.NoError(t, err)
	assert.NotEqual(t, cid, pid)
}

func TestFactory_MountsCustomRootOnce(t *testing.T) {
	custom := graph.NewMemoryStore()
	mounts := graph.NewMountTable(graph.NewMemoryStore())
	mounter := &countingMounter{Mounter: mounts}
	f := NewFactory(mounts, mounter, FactoryConfig{InstanceID: testInstance, CustomRoot: custom})

	for _, app := range []string{"contacts", "photos", "contacts"} {
		a, err := f.Get(app)
		require.NoError(t, err)
		_, err = a.GetFolder("/")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, mounter.calls)
	assert.True(t, mounts.Mounted(CustomRootName))

	children, err := custom.ListChildren("appdata_abc123")
	require.NoError(t, err)
	assert.Len(t, children, 2)
}

func TestFactory_ExistingMountIsAccepted(t *testing.T) {
	custom := graph.NewMemoryStore()
	mounts := graph.NewMountTable(graph.NewMemoryStore())
	require.NoError(t, mounts.Mount(CustomRootName, custom))

	f := NewFactory(mounts, mounts, FactoryConfig{InstanceID: testInstance, CustomRoot: custom})
	a, err := f.Get("contacts")
	require.NoError(t, err)
	folder, err := a.GetFolder("/")
	require.NoError(t, err)
	assert.Equal(t, "appdataroot/appdata_abc123/contacts", folder.Path())
}

func TestFactory_MountFailure(t *testing.T) {
	errMount := errors.New("mount refused")
	mounter := &countingMounter{Mounter: graph.NewMountTable(graph.NewMemoryStore()), err: errMount}
	f := NewFactory(graph.NewMemoryStore(), mounter, FactoryConfig{InstanceID: testInstance, CustomRoot: graph.NewMemoryStore()})

	_, err := f.Get("contacts")
	assert.ErrorIs(t, err, errMount)
	_, err = f.Get("contacts")
	assert.ErrorIs(t, err, errMount)
	assert.Equal(t, 1, mounter.calls)
}

func TestFactory_CustomRootWithoutMounter(t *testing.T) {
	f := NewFactory(graph.NewMemoryStore(), nil, FactoryConfig{InstanceID: testInstance, CustomRoot: graph.NewMemoryStore()})
	_, err := f.Get("contacts")
	assert.Error(t, err)
}
