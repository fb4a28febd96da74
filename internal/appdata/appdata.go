// Package appdata gives every application an isolated folder namespace
// appdata_<instanceid>/<appId> inside a shared storage tree.
//
// Folders are created lazily on first use. Lookups by name are memoized in a
// capped cache that also records not-found outcomes, so a folder that was
// missing once keeps failing fast until the entry is evicted, replaced by
// NewFolder in the same process, or dropped with Invalidate. A folder created
// out-of-band while a negative entry is cached stays invisible for that window.
package appdata

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/agentic-research/appdata/api"
	"github.com/agentic-research/appdata/internal/capcache"
	"github.com/agentic-research/appdata/internal/graph"
)

const (
	// CustomRootName is the top-level tree entry a custom storage root is mounted on.
	CustomRootName = "appdataroot"

	namespacePrefix = "appdata_"
)

// Options configures one AppData instance.
type Options struct {
	AppID      string
	InstanceID string
	// CustomRoot redirects every lookup through the top-level CustomRootName entry.
	CustomRoot    bool
	CacheCapacity int
	Logger        *slog.Logger
}

// AppData resolves folders of a single app namespace.
// It is safe for concurrent use.
type AppData struct {
	tree       graph.Tree
	appID      string
	instanceID string
	customRoot bool
	log        *slog.Logger

	// folder memoizes the app folder node once resolved. It is written with
	// CompareAndSwap so concurrent first lookups agree on a single node.
	folder  atomic.Pointer[graph.Node]
	folders *capcache.Cache[*Folder]
}

// New returns an AppData for opts.AppID. It stores configuration only; the tree
// is first touched by the first lookup. A missing instance id is reported by
// that lookup as ErrNoInstanceID.
func New(tree graph.Tree, opts Options) (*AppData, error) {
	if tree == nil {
		return nil, errors.New("appdata: nil storage tree")
	}
	if err := checkAppID(opts.AppID); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AppData{
		tree:       tree,
		appID:      opts.AppID,
		instanceID: opts.InstanceID,
		customRoot: opts.CustomRoot,
		log:        logger.With("app", opts.AppID),
		folders:    capcache.New[*Folder](opts.CacheCapacity),
	}, nil
}

// checkAppID accepts a single path element other than "." and "..".
func checkAppID(appID string) error {
	if appID == "" || appID == "." || appID == ".." || strings.ContainsAny(appID, `/\`) {
		return fmt.Errorf("%w: app id %q", ErrInvalidName, appID)
	}
	return nil
}

// checkName rejects folder names that are empty once cleaned or that hold a
// ".." element, so joined paths stay below the app folder.
func checkName(name string) error {
	p := strings.ReplaceAll(name, `\`, "/")
	for _, elem := range strings.Split(p, "/") {
		if elem == ".." {
			return fmt.Errorf("%w: folder name %q", ErrInvalidName, name)
		}
	}
	if graph.CleanPath(p) == "" {
		return fmt.Errorf("%w: empty folder name", ErrInvalidName)
	}
	return nil
}

// AppID returns the app namespace served by a.
func (a *AppData) AppID() string { return a.appID }

// NamespaceName returns "appdata_<instanceid>".
func (a *AppData) NamespaceName() (string, error) {
	if a.instanceID == "" {
		return "", ErrNoInstanceID
	}
	return namespacePrefix + a.instanceID, nil
}

// effectiveRoot returns the tree path lookups are rooted at: the custom root
// mount when redirection is on and the mount is visible, otherwise the tree root.
func (a *AppData) effectiveRoot() (string, error) {
	if !a.customRoot {
		return "", nil
	}
	children, err := a.tree.ListChildren("")
	if err != nil {
		return "", err
	}
	for _, c := range children {
		if c.Name() == CustomRootName && c.IsFolder() {
			return c.Path, nil
		}
	}
	return "", nil
}

// getOrCreate fetches the folder at p, creating it when missing. Losing a
// creation race to another caller is not an error: the winner's folder is returned.
func (a *AppData) getOrCreate(p string) (*graph.Node, error) {
	n, err := a.tree.Get(p)
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, graph.ErrNotFound) {
		return nil, err
	}

	n, err = a.tree.NewFolder(p)
	switch {
	case err == nil:
		a.log.Debug("created folder", slog.String("path", n.Path), slog.Uint64("id", n.ID))
		return n, nil
	case errors.Is(err, graph.ErrAlreadyExists):
		a.log.Info("folder created concurrently, reusing it", slog.String("path", p))
		return a.tree.Get(p)
	default:
		return nil, err
	}
}

// appRootFolder returns appdata_<instanceid> under root, creating it if needed.
func (a *AppData) appRootFolder(root string) (*graph.Node, error) {
	name, err := a.NamespaceName()
	if err != nil {
		return nil, err
	}
	p := graph.Join(root, name)
	n, err := a.getOrCreate(p)
	if errors.Is(err, graph.ErrNotPermitted) {
		return nil, fmt.Errorf("%w: namespace root %s: %w", ErrFolderUnavailable, p, err)
	}
	return n, err
}

// appFolder returns appdata_<instanceid>/<appId>, creating it if needed.
// The direct path is tried first so the common case never touches the namespace root.
func (a *AppData) appFolder() (*graph.Node, error) {
	if n := a.folder.Load(); n != nil {
		return n, nil
	}

	root, err := a.effectiveRoot()
	if err != nil {
		return nil, err
	}
	name, err := a.NamespaceName()
	if err != nil {
		return nil, err
	}

	n, err := a.tree.Get(graph.Join(root, name, a.appID))
	if errors.Is(err, graph.ErrNotFound) {
		var nsRoot *graph.Node
		nsRoot, err = a.appRootFolder(root)
		if err != nil {
			return nil, err
		}
		n, err = a.getOrCreate(graph.Join(nsRoot.Path, a.appID))
		if errors.Is(err, graph.ErrNotPermitted) {
			return nil, fmt.Errorf("%w for %s: %w", ErrFolderUnavailable, a.appID, err)
		}
	}
	if err != nil {
		return nil, err
	}
	if !n.IsFolder() {
		return nil, fmt.Errorf("%w for %s: %s: %w", ErrFolderUnavailable, a.appID, n.Path, graph.ErrNotFolder)
	}

	if !a.folder.CompareAndSwap(nil, n) {
		n = a.folder.Load()
	}
	return n, nil
}

// NamespaceRoot returns the appdata_<instanceid> folder shared by all apps,
// creating it if needed.
func (a *AppData) NamespaceRoot() (*Folder, error) {
	root, err := a.effectiveRoot()
	if err != nil {
		return nil, err
	}
	n, err := a.appRootFolder(root)
	if err != nil {
		return nil, err
	}
	return newFolder(a.appID, n), nil
}

func (a *AppData) cacheKey(name string) string {
	return a.appID + "/" + name
}

// GetFolder returns the folder name inside the app namespace. "/" is the app
// folder itself and is created on demand; any other name must already exist.
// Names that would leave the app folder fail with ErrInvalidName and are not cached.
// Missing folders fail with a *NotFoundError, and repeated lookups of the same
// name fail from the cache without touching the tree.
func (a *AppData) GetFolder(name string) (*Folder, error) {
	if name != "/" {
		if err := checkName(name); err != nil {
			return nil, err
		}
	}
	root, err := a.effectiveRoot()
	if err != nil {
		return nil, err
	}

	key := a.cacheKey(name)
	if o, ok := a.folders.Get(key); ok {
		return o.Value()
	}

	var n *graph.Node
	if name == "/" {
		n, err = a.appFolder()
	} else {
		var ns string
		if ns, err = a.NamespaceName(); err != nil {
			return nil, err
		}
		n, err = a.tree.Get(graph.Join(root, ns, a.appID, name))
	}
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			nf := &NotFoundError{AppID: a.appID, Name: name}
			a.folders.Set(key, capcache.NotFound[*Folder](nf))
			return nil, nf
		}
		return nil, err
	}
	if !n.IsFolder() {
		return nil, fmt.Errorf("%s: %w", n.Path, graph.ErrNotFolder)
	}

	f := newFolder(a.appID, n)
	a.folders.Set(key, capcache.Found(f))
	return f, nil
}

// NewFolder creates name inside the app folder and caches the result,
// replacing whatever was cached for name before.
func (a *AppData) NewFolder(name string) (*Folder, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	app, err := a.appFolder()
	if err != nil {
		return nil, err
	}
	n, err := a.tree.NewFolder(graph.Join(app.Path, name))
	if err != nil {
		return nil, fmt.Errorf("new folder %s/%s: %w", a.appID, name, err)
	}

	f := newFolder(a.appID, n)
	a.folders.Set(a.cacheKey(name), capcache.Found(f))
	return f, nil
}

// ListFolders returns the folders directly inside the app folder in tree
// order. Other entries are skipped. Listings are never cached.
func (a *AppData) ListFolders() ([]*Folder, error) {
	app, err := a.appFolder()
	if err != nil {
		return nil, err
	}
	children, err := a.tree.ListChildren(app.Path)
	if err != nil {
		return nil, err
	}

	folders := make([]*Folder, 0, len(children))
	for _, c := range children {
		if c.IsFolder() {
			folders = append(folders, newFolder(a.appID, c))
		}
	}
	return folders, nil
}

// ID returns the tree identifier of the app folder.
func (a *AppData) ID() (uint64, error) {
	app, err := a.appFolder()
	if err != nil {
		return 0, err
	}
	return app.ID, nil
}

// Invalidate drops the cached outcome for name.
func (a *AppData) Invalidate(name string) {
	a.folders.Remove(a.cacheKey(name))
}

// CacheStats reports the folder cache counters.
func (a *AppData) CacheStats() api.CacheInfo {
	s := a.folders.Stats()
	return api.CacheInfo{
		AppID:      a.appID,
		Hits:       s.Hits,
		Misses:     s.Misses,
		Entries:    s.Entries,
		MaxEntries: s.MaxEntries,
		HitRate:    s.HitRate(),
	}
}
