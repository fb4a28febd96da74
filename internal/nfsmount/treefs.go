// Package nfsmount exports a storage tree over NFSv3.
// It adapts graph.Tree to billy.Filesystem for use with willscott/go-nfs,
// so the appdata layout can be browsed with a plain mount.
package nfsmount

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/appdata/internal/graph"
)

var errReadOnly = fmt.Errorf("read-only filesystem")

// TreeFS adapts a graph.Tree to billy.Filesystem.
// Folders become directories and every other entry an empty file.
// Writes are limited to MkdirAll, and only when SetWritable was called.
type TreeFS struct {
	tree      graph.Tree
	mountTime time.Time
	writable  bool
}

// NewTreeFS creates a read-only billy.Filesystem backed by tree.
func NewTreeFS(tree graph.Tree) *TreeFS {
	return &TreeFS{
		tree:      tree,
		mountTime: time.Now(),
	}
}

// SetWritable allows clients to create folders with mkdir.
func (fs *TreeFS) SetWritable() {
	fs.writable = true
}

// --- billy.Basic ---

func (fs *TreeFS) Create(filename string) (billy.File, error) {
	return nil, errReadOnly
}

func (fs *TreeFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *TreeFS) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	filename = cleanPath(filename)
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, errReadOnly
	}

	node, err := fs.tree.Get(treePath(filename))
	if err != nil {
		return nil, pathError("open", filename, err)
	}
	if node.IsFolder() {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}
	return &emptyFile{name: filename}, nil
}

func (fs *TreeFS) Stat(filename string) (os.FileInfo, error) {
	return fs.Lstat(filename)
}

func (fs *TreeFS) Rename(oldpath, newpath string) error {
	return errReadOnly
}

func (fs *TreeFS) Remove(filename string) error {
	return errReadOnly
}

func (fs *TreeFS) Join(elem ...string) string {
	return path.Join(elem...)
}

// --- billy.TempFile ---

func (fs *TreeFS) TempFile(dir, prefix string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *TreeFS) ReadDir(p string) ([]os.FileInfo, error) {
	p = cleanPath(p)

	node, err := fs.tree.Get(treePath(p))
	if err != nil {
		return nil, pathError("readdir", p, err)
	}
	if !node.IsFolder() {
		return nil, &os.PathError{Op: "readdir", Path: p, Err: fmt.Errorf("not a directory")}
	}

	children, err := fs.tree.ListChildren(treePath(p))
	if err != nil {
		return nil, pathError("readdir", p, err)
	}
	infos := make([]os.FileInfo, 0, len(children))
	for _, child := range children {
		infos = append(infos, nodeToFileInfo(child))
	}
	return infos, nil
}

// MkdirAll creates every missing folder along filename. Existing folders
// are accepted so concurrent creators do not fail each other.
func (fs *TreeFS) MkdirAll(filename string, perm os.FileMode) error {
	if !fs.writable {
		return errReadOnly
	}
	filename = cleanPath(filename)

	cur := ""
	for _, part := range strings.Split(treePath(filename), "/") {
		if part == "" {
			continue
		}
		cur = graph.Join(cur, part)
		node, err := fs.tree.Get(cur)
		if errors.Is(err, graph.ErrNotFound) {
			node, err = fs.tree.NewFolder(cur)
			if errors.Is(err, graph.ErrAlreadyExists) {
				node, err = fs.tree.Get(cur)
			}
		}
		if err != nil {
			return pathError("mkdir", "/"+cur, err)
		}
		if !node.IsFolder() {
			return &os.PathError{Op: "mkdir", Path: "/" + cur, Err: fmt.Errorf("not a directory")}
		}
	}
	return nil
}

// --- billy.Symlink ---

func (fs *TreeFS) Lstat(filename string) (os.FileInfo, error) {
	filename = cleanPath(filename)

	if filename == "/" {
		return &staticFileInfo{
			name:    "/",
			mode:    os.ModeDir | fs.dirPerm(),
			modTime: fs.mountTime,
		}, nil
	}

	node, err := fs.tree.Get(treePath(filename))
	if err != nil {
		return nil, pathError("lstat", filename, err)
	}
	return nodeToFileInfo(node), nil
}

func (fs *TreeFS) Symlink(target, link string) error {
	return billy.ErrNotSupported
}

func (fs *TreeFS) Readlink(link string) (string, error) {
	return "", billy.ErrNotSupported
}

// --- billy.Chroot ---

func (fs *TreeFS) Chroot(p string) (billy.Filesystem, error) {
	return chroot.New(fs, p), nil
}

func (fs *TreeFS) Root() string {
	return "/"
}

// --- billy.Capable ---

func (fs *TreeFS) Capabilities() billy.Capability {
	caps := billy.ReadCapability | billy.SeekCapability
	if fs.writable {
		caps |= billy.WriteCapability
	}
	return caps
}

// --- internals ---

func (fs *TreeFS) dirPerm() os.FileMode {
	if fs.writable {
		return 0o755
	}
	return 0o555
}

// cleanPath normalizes a billy path to a clean absolute path.
func cleanPath(p string) string {
	return "/" + graph.CleanPath(p)
}

// treePath converts a clean absolute billy path to a tree path.
func treePath(p string) string {
	return strings.TrimPrefix(p, "/")
}

// pathError maps tree errors onto the os errors go-nfs translates to NFS status codes.
func pathError(op, p string, err error) error {
	switch {
	case errors.Is(err, graph.ErrNotFound):
		err = os.ErrNotExist
	case errors.Is(err, graph.ErrNotPermitted):
		err = os.ErrPermission
	case errors.Is(err, graph.ErrAlreadyExists):
		err = os.ErrExist
	}
	return &os.PathError{Op: op, Path: p, Err: err}
}

// nodeToFileInfo converts a graph.Node to os.FileInfo.
func nodeToFileInfo(n *graph.Node) os.FileInfo {
	mode := os.FileMode(0o444)
	if n.IsFolder() {
		mode = os.ModeDir | 0o555
	}

	modTime := n.ModTime
	if modTime.IsZero() {
		modTime = time.Now()
	}

	return &staticFileInfo{
		name:    n.Name(),
		mode:    mode,
		modTime: modTime,
	}
}

// staticFileInfo implements os.FileInfo with static values.
type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() interface{}   { return nil }

// Compile-time interface checks.
var (
	_ billy.Filesystem = (*TreeFS)(nil)
	_ billy.Capable    = (*TreeFS)(nil)
)
