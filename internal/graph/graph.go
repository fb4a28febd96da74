package graph

import (
	"errors"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound      = errors.New("node not found")
	ErrNotPermitted  = errors.New("not permitted")
	ErrAlreadyExists = errors.New("node already exists")
	ErrNotFolder     = errors.New("not a folder")
)

// Node is a single entry in a storage tree.
// The Mode field declares whether this is a folder (fs.ModeDir) or a plain entry.
//
// ID is unique only within the backend that produced the node. A MountTable
// passes ids through unchanged, so nodes of different mounted trees may share
// an id; Path is the identity across mounts.
type Node struct {
	ID      uint64
	Path    string      // slash separated, no leading slash; "" is the tree root
	Mode    fs.FileMode // fs.ModeDir for folders, 0 for everything else
	ModTime time.Time
}

// Name returns the last element of the node path.
func (n *Node) Name() string {
	if n.Path == "" {
		return ""
	}
	return path.Base(n.Path)
}

// IsFolder reports whether the node can hold children.
func (n *Node) IsFolder() bool {
	return n.Mode.IsDir()
}

// Tree is the storage capability consumed by the appdata resolver.
// This allows us to swap the backend (Memory -> SQLite -> billy filesystem).
type Tree interface {
	// Get returns the node at path or ErrNotFound.
	Get(path string) (*Node, error)
	// NewFolder creates a folder at path. The parent must exist.
	// Fails with ErrAlreadyExists if path is taken and ErrNotPermitted
	// if the backend refuses writes there.
	NewFolder(path string) (*Node, error)
	// ListChildren returns the direct children of path in tree order.
	ListChildren(path string) ([]*Node, error)
}

// Mounter registers a tree under a top-level name of another tree.
type Mounter interface {
	Mount(name string, t Tree) error
}

// CleanPath normalizes a tree path: slash separated, no leading or trailing slash.
// The root is "".
func CleanPath(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

// Join joins path elements and normalizes the result.
func Join(elem ...string) string {
	return CleanPath(path.Join(elem...))
}

// parentPath returns the parent of a cleaned path ("" for top-level entries).
func parentPath(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

// -----------------------------------------------------------------------------
// In-memory tree
// -----------------------------------------------------------------------------

type MemoryStore struct {
	mu       sync.RWMutex
	nodes    map[string]*Node
	children map[string][]string // parent path -> child paths, insertion order
	denied   map[string]struct{} // creation under these paths fails with ErrNotPermitted
	nextID   uint64
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		denied:   make(map[string]struct{}),
		nextID:   1,
	}
	s.nodes[""] = &Node{ID: 0, Path: "", Mode: fs.ModeDir | 0o755, ModTime: time.Now()}
	return s
}

// Deny makes every creation directly below p fail with ErrNotPermitted.
func (s *MemoryStore) Deny(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denied[CleanPath(p)] = struct{}{}
}

// AddFile adds a non-folder entry. The parent must already exist.
func (s *MemoryStore) AddFile(p string) (*Node, error) {
	return s.add(CleanPath(p), 0o644)
}

// Get implements Tree.
func (s *MemoryStore) Get(p string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[CleanPath(p)]
	if !ok {
		return nil, ErrNotFound
	}
	c := *n
	return &c, nil
}

// NewFolder implements Tree.
func (s *MemoryStore) NewFolder(p string) (*Node, error) {
	return s.add(CleanPath(p), fs.ModeDir|0o755)
}

func (s *MemoryStore) add(p string, mode fs.FileMode) (*Node, error) {
	if p == "" {
		return nil, ErrAlreadyExists
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent := parentPath(p)
	pn, ok := s.nodes[parent]
	if !ok {
		return nil, ErrNotFound
	}
	if !pn.IsFolder() {
		return nil, ErrNotFolder
	}
	if _, deny := s.denied[parent]; deny {
		return nil, ErrNotPermitted
	}
	if _, exists := s.nodes[p]; exists {
		return nil, ErrAlreadyExists
	}

	n := &Node{ID: s.nextID, Path: p, Mode: mode, ModTime: time.Now()}
	s.nextID++
	s.nodes[p] = n
	s.children[parent] = append(s.children[parent], p)

	c := *n
	return &c, nil
}

// ListChildren implements Tree.
func (s *MemoryStore) ListChildren(p string) ([]*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p = CleanPath(p)
	n, ok := s.nodes[p]
	if !ok {
		return nil, ErrNotFound
	}
	if !n.IsFolder() {
		return nil, ErrNotFolder
	}

	ids := s.children[p]
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		c := *s.nodes[id]
		out = append(out, &c)
	}
	return out, nil
}

// Verify interface compliance at compile time.
var _ Tree = (*MemoryStore)(nil)
