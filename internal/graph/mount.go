package graph

import (
	"fmt"
	"strings"
	"sync"
)

// MountTable is a Tree that overlays other trees at top-level names of a base tree.
// Every path below a mount name is answered by the mounted tree; paths returned
// by the mounted tree are re-rooted under the mount name. It is safe for
// concurrent use; mounts can be added while lookups are in flight.
type MountTable struct {
	mu     sync.RWMutex
	base   Tree
	mounts map[string]Tree
	order  []string
}

func NewMountTable(base Tree) *MountTable {
	return &MountTable{base: base, mounts: make(map[string]Tree)}
}

// Mount implements Mounter. name must be a single non-empty path element.
func (m *MountTable) Mount(name string, t Tree) error {
	name = CleanPath(name)
	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("mount %q: must be a top-level name", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mounts[name]; ok {
		return fmt.Errorf("mount %q: %w", name, ErrAlreadyExists)
	}
	m.mounts[name] = t
	m.order = append(m.order, name)
	return nil
}

// Mounted reports whether name has a tree mounted on it.
func (m *MountTable) Mounted(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.mounts[CleanPath(name)]
	return ok
}

// route picks the tree serving p and the path inside that tree.
func (m *MountTable) route(p string) (t Tree, inner, prefix string) {
	p = CleanPath(p)
	head, rest, _ := strings.Cut(p, "/")

	m.mu.RLock()
	defer m.mu.RUnlock()
	if mt, ok := m.mounts[head]; ok && head != "" {
		return mt, rest, head
	}
	return m.base, p, ""
}

// reroot prefixes the node path with the mount name. The id is kept as the
// mounted tree assigned it.
func reroot(n *Node, prefix string) *Node {
	if n == nil || prefix == "" {
		return n
	}
	c := *n
	c.Path = Join(prefix, n.Path)
	return &c
}

// Get implements Tree.
func (m *MountTable) Get(p string) (*Node, error) {
	t, inner, prefix := m.route(p)
	n, err := t.Get(inner)
	if err != nil {
		return nil, err
	}
	return reroot(n, prefix), nil
}

// NewFolder implements Tree.
func (m *MountTable) NewFolder(p string) (*Node, error) {
	t, inner, prefix := m.route(p)
	if prefix != "" && inner == "" {
		return nil, ErrAlreadyExists
	}
	n, err := t.NewFolder(inner)
	if err != nil {
		return nil, err
	}
	return reroot(n, prefix), nil
}

// ListChildren implements Tree. The root listing shows the base tree's
// children followed by the mount points in mount order.
func (m *MountTable) ListChildren(p string) ([]*Node, error) {
	t, inner, prefix := m.route(p)
	if prefix != "" || CleanPath(p) != "" {
		children, err := t.ListChildren(inner)
		if err != nil {
			return nil, err
		}
		for i, c := range children {
			children[i] = reroot(c, prefix)
		}
		return children, nil
	}

	children, err := m.base.ListChildren("")
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	names := append([]string(nil), m.order...)
	m.mu.RUnlock()

	out := make([]*Node, 0, len(children)+len(names))
	for _, c := range children {
		if !m.Mounted(c.Path) {
			out = append(out, c)
		}
	}
	for _, name := range names {
		mt, _, _ := m.route(name)
		root, err := mt.Get("")
		if err != nil {
			return nil, fmt.Errorf("mount %q: %w", name, err)
		}
		out = append(out, reroot(root, name))
	}
	return out, nil
}

// Verify interface compliance at compile time.
var (
	_ Tree    = (*MountTable)(nil)
	_ Mounter = (*MountTable)(nil)
)
