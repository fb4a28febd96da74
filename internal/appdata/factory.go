package appdata

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/agentic-research/appdata/internal/graph"
)

// FactoryConfig is the deployment-wide configuration shared by all apps.
type FactoryConfig struct {
	InstanceID string
	// CustomRoot, when set, is mounted at CustomRootName and every app
	// namespace is resolved through it.
	CustomRoot    graph.Tree
	CacheCapacity int
	Logger        *slog.Logger
}

// Factory hands out one AppData per app id.
type Factory struct {
	tree    graph.Tree
	mounter graph.Mounter
	cfg     FactoryConfig

	mountOnce sync.Once
	mountErr  error

	mu   sync.Mutex
	apps map[string]*AppData
}

// NewFactory returns a factory resolving namespaces in tree. mounter is only
// used when cfg.CustomRoot is set and may be nil otherwise.
func NewFactory(tree graph.Tree, mounter graph.Mounter, cfg FactoryConfig) *Factory {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Factory{
		tree:    tree,
		mounter: mounter,
		cfg:     cfg,
		apps:    make(map[string]*AppData),
	}
}

// mountCustomRoot registers the custom root once. A mount that is already
// present (another factory on the same tree) counts as registered.
func (f *Factory) mountCustomRoot() error {
	f.mountOnce.Do(func() {
		if f.mounter == nil {
			f.mountErr = errors.New("custom root configured without a mounter")
			return
		}
		err := f.mounter.Mount(CustomRootName, f.cfg.CustomRoot)
		if err != nil && !errors.Is(err, graph.ErrAlreadyExists) {
			f.mountErr = fmt.Errorf("mount %s: %w", CustomRootName, err)
			return
		}
		f.cfg.Logger.Debug("mounted custom appdata root", slog.String("at", CustomRootName))
	})
	return f.mountErr
}

// Get returns the AppData for appID, creating it on first request.
func (f *Factory) Get(appID string) (*AppData, error) {
	if f.cfg.CustomRoot != nil {
		if err := f.mountCustomRoot(); err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if a, ok := f.apps[appID]; ok {
		return a, nil
	}
	a, err := New(f.tree, Options{
		AppID:         appID,
		InstanceID:    f.cfg.InstanceID,
		CustomRoot:    f.cfg.CustomRoot != nil,
		CacheCapacity: f.cfg.CacheCapacity,
		Logger:        f.cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	f.apps[appID] = a
	return a, nil
}

// Apps returns the app ids handed out so far, sorted.
func (f *Factory) Apps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.apps))
	for id := range f.apps {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
