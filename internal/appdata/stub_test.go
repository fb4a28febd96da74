package appdata

import (
	"sync"

	"github.com/agentic-research/appdata/internal/graph"
)

// countingTree wraps a graph.Tree and counts calls per operation.
type countingTree struct {
	graph.Tree

	mu      sync.Mutex
	gets    map[string]int
	creates map[string]int
	lists   map[string]int

	// beforeCreate runs before each NewFolder is forwarded.
	beforeCreate func(p string)
	// listErr, when set, is returned for every ListChildren call.
	listErr error
}

func newCountingTree(t graph.Tree) *countingTree {
	return &countingTree{
		Tree:    t,
		gets:    make(map[string]int),
		creates: make(map[string]int),
		lists:   make(map[string]int),
	}
}

func (c *countingTree) Get(p string) (*graph.Node, error) {
	c.mu.Lock()
	c.gets[graph.CleanPath(p)]++
	c.mu.Unlock()
	return c.Tree.Get(p)
}

func (c *countingTree) NewFolder(p string) (*graph.Node, error) {
	c.mu.Lock()
	c.creates[graph.CleanPath(p)]++
	hook := c.beforeCreate
	c.mu.Unlock()
	if hook != nil {
		hook(graph.CleanPath(p))
	}
	return c.Tree.NewFolder(p)
}

func (c *countingTree) ListChildren(p string) ([]*graph.Node, error) {
	c.mu.Lock()
	c.lists[graph.CleanPath(p)]++
	err := c.listErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.Tree.ListChildren(p)
}

func (c *countingTree) totalGets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.gets {
		n += v
	}
	return n
}

func (c *countingTree) totalCreates() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.creates {
		n += v
	}
	return n
}

func (c *countingTree) getsOf(p string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets[graph.CleanPath(p)]
}

// countingMounter records Mount calls and forwards them.
type countingMounter struct {
	graph.Mounter
	calls int
	err   error
}

func (m *countingMounter) Mount(name string, t graph.Tree) error {
	m.calls++
	if m.err != nil {
		return m.err
	}
	return m.Mounter.Mount(name, t)
}
