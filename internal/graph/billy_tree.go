package graph

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	billy "github.com/go-git/go-billy/v5"
)

// BillyTree adapts a billy.Filesystem to Tree.
// Directories are folders; every other entry is a plain node. Node ids are
// the xxhash of the cleaned path, so they are stable across processes.
type BillyTree struct {
	fs billy.Filesystem
	mu sync.Mutex // serializes the exists-check + mkdir pair
}

// NewBillyTree wraps fs. Use osfs.New(dir) for a local directory.
func NewBillyTree(fs billy.Filesystem) *BillyTree {
	return &BillyTree{fs: fs}
}

// Filesystem returns the underlying billy filesystem.
func (t *BillyTree) Filesystem() billy.Filesystem {
	return t.fs
}

// Get implements Tree.
func (t *BillyTree) Get(p string) (*Node, error) {
	p = CleanPath(p)
	info, err := t.fs.Stat(fsPath(p))
	if err != nil {
		return nil, mapFSErr(err)
	}
	return infoNode(p, info), nil
}

// NewFolder implements Tree.
func (t *BillyTree) NewFolder(p string) (*Node, error) {
	p = CleanPath(p)
	if p == "" {
		return nil, ErrAlreadyExists
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	parent, err := t.fs.Stat(fsPath(parentPath(p)))
	if err != nil {
		return nil, mapFSErr(err)
	}
	if !parent.IsDir() {
		return nil, ErrNotFolder
	}
	if _, err := t.fs.Lstat(fsPath(p)); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, mapFSErr(err)
	}

	// The parent exists, so MkdirAll creates exactly one directory.
	if err := t.fs.MkdirAll(fsPath(p), 0o755); err != nil {
		return nil, mapFSErr(err)
	}
	info, err := t.fs.Stat(fsPath(p))
	if err != nil {
		return nil, mapFSErr(err)
	}
	return infoNode(p, info), nil
}

// ListChildren implements Tree. Children are ordered by name.
func (t *BillyTree) ListChildren(p string) ([]*Node, error) {
	p = CleanPath(p)
	info, err := t.fs.Stat(fsPath(p))
	if err != nil {
		return nil, mapFSErr(err)
	}
	if !info.IsDir() {
		return nil, ErrNotFolder
	}

	infos, err := t.fs.ReadDir(fsPath(p))
	if err != nil {
		return nil, mapFSErr(err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	out := make([]*Node, 0, len(infos))
	for _, fi := range infos {
		out = append(out, infoNode(Join(p, fi.Name()), fi))
	}
	return out, nil
}

// NodeID returns the id BillyTree assigns to a cleaned path.
func NodeID(p string) uint64 {
	return xxhash.Sum64String(CleanPath(p))
}

func infoNode(p string, info os.FileInfo) *Node {
	mode := fs.FileMode(0o644)
	if info.IsDir() {
		mode = fs.ModeDir | 0o755
	}
	return &Node{
		ID:      NodeID(p),
		Path:    p,
		Mode:    mode,
		ModTime: info.ModTime(),
	}
}

// fsPath converts a tree path to a billy path.
func fsPath(p string) string {
	return "/" + p
}

// mapFSErr converts filesystem errors into the Tree error taxonomy.
func mapFSErr(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrNotPermitted, err)
	case errors.Is(err, fs.ErrExist):
		return ErrAlreadyExists
	default:
		return err
	}
}

// Verify interface compliance at compile time.
var _ Tree = (*BillyTree)(nil)
