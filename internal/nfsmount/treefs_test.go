package nfsmount

import (
	"fmt"
	"io"
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/appdata/internal/graph"
)

func newTestTree(t *testing.T) *graph.MemoryStore {
	t.Helper()
	store := graph.NewMemoryStore()
	for _, p := range []string{"appdata_oc1", "appdata_oc1/contacts", "appdata_oc1/contacts/avatars", "appdata_oc1/photos"} {
		_, err := store.NewFolder(p)
		require.NoError(t, err)
	}
	_, err := store.AddFile("appdata_oc1/contacts/index")
	require.NoError(t, err)
	return store
}

func TestStatRoot(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	info, err := tfs.Stat("/")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "/", info.Name())
}

func TestStatFolder(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	info, err := tfs.Stat("/appdata_oc1/contacts")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "contacts", info.Name())
}

func TestStatPlainEntry(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	info, err := tfs.Stat("appdata_oc1/contacts/index")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, "index", info.Name())
	assert.Equal(t, int64(0), info.Size())
}

func TestStatNotFound(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	_, err := tfs.Stat("/appdata_oc1/nonexistent")
	assert.True(t, os.IsNotExist(err))
}

func TestMkdirAllDenied(t *testing.T) {
	store := newTestTree(t)
	store.Deny("appdata_oc1/photos")
	tfs := NewTreeFS(store)
	tfs.SetWritable()

	err := tfs.MkdirAll("/appdata_oc1/photos/2024", 0o755)
	assert.True(t, os.IsPermission(err))
}

func TestReadDirRoot(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	entries, err := tfs.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "appdata_oc1", entries[0].Name())
}

func TestReadDirSubdir(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	entries, err := tfs.ReadDir("/appdata_oc1/contacts")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	assert.Equal(t, []string{"avatars", "index"}, names)
	assert.True(t, entries[0].IsDir())
	assert.False(t, entries[1].IsDir())
}

func TestReadDirOnPlainEntry(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	_, err := tfs.ReadDir("/appdata_oc1/contacts/index")
	assert.Error(t, err)
}

func TestOpenPlainEntryIsEmpty(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	f, err := tfs.Open("/appdata_oc1/contacts/index")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Empty(t, data)

	pos, err := f.Seek(5, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)
}

func TestOpenFolderFails(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	_, err := tfs.Open("/appdata_oc1/contacts")
	assert.Error(t, err)
}

func TestOpenNotFound(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	_, err := tfs.Open("/nonexistent")
	assert.True(t, os.IsNotExist(err))
}

func TestReadOnly(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	_, err := tfs.Create("newfile.txt")
	assert.Equal(t, errReadOnly, err)

	_, err = tfs.OpenFile("/appdata_oc1/contacts/index", os.O_RDWR, 0)
	assert.Equal(t, errReadOnly, err)

	err = tfs.MkdirAll("/newdir", 0o755)
	assert.Equal(t, errReadOnly, err)

	err = tfs.Remove("/appdata_oc1/contacts")
	assert.Equal(t, errReadOnly, err)

	err = tfs.Rename("/appdata_oc1", "/renamed")
	assert.Equal(t, errReadOnly, err)
}

func TestMkdirAllWritable(t *testing.T) {
	store := newTestTree(t)
	tfs := NewTreeFS(store)
	tfs.SetWritable()

	require.NoError(t, tfs.MkdirAll("/appdata_oc1/notes/2024", 0o755))
	require.NoError(t, tfs.MkdirAll("/appdata_oc1/notes/2024", 0o755), "existing folders are accepted")

	n, err := store.Get("appdata_oc1/notes/2024")
	require.NoError(t, err)
	assert.True(t, n.IsFolder())

	err = tfs.MkdirAll("/appdata_oc1/contacts/index/sub", 0o755)
	assert.Error(t, err, "cannot descend through a plain entry")
}

func TestChroot(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	sub, err := tfs.Chroot("/appdata_oc1")
	require.NoError(t, err)

	entries, err := sub.ReadDir("/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "contacts", entries[0].Name())
}

func TestCapabilities(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	caps := tfs.Capabilities()
	assert.NotZero(t, caps&2) // ReadCapability (1 << 1)
	assert.NotZero(t, caps&8) // SeekCapability (1 << 3)
	assert.Zero(t, caps&1)    // WriteCapability (1 << 0) should NOT be set

	tfs.SetWritable()
	assert.NotZero(t, tfs.Capabilities()&1)
}

func TestRoot(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))
	assert.Equal(t, "/", tfs.Root())
}

func TestJoin(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))
	assert.Equal(t, "a/b/c", tfs.Join("a", "b", "c"))
}

func TestMountOptions(t *testing.T) {
	opts, err := MountOptions("linux", 2049, false)
	require.NoError(t, err)
	assert.Equal(t, "port=2049,mountport=2049,vers=3,tcp,local_lock=all,nolock,ro", opts)

	opts, err = MountOptions("darwin", 2049, true)
	require.NoError(t, err)
	assert.NotContains(t, opts, "rdonly")

	_, err = MountOptions("plan9", 2049, false)
	assert.Error(t, err)
}

func TestNFSServerStarts(t *testing.T) {
	tfs := NewTreeFS(newTestTree(t))

	srv, err := NewServer(tfs, "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = srv.Close() }()

	assert.True(t, srv.Port() > 0, "server should be on a valid port")

	// Verify TCP connectivity
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", srv.Port()))
	require.NoError(t, err)
	_ = conn.Close()
}
