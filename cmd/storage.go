package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/agentic-research/appdata/internal/appdata"
	"github.com/agentic-research/appdata/internal/config"
	"github.com/agentic-research/appdata/internal/graph"
)

// sqliteFile is the database file name used by the sqlite backend.
const sqliteFile = "appdata.db"

// storage is the storage tree of one CLI invocation and the factory over it.
type storage struct {
	tree    *graph.MountTable
	factory *appdata.Factory
	closers []func() error
}

// openStorage builds the backend named by cfg.Backend, wraps it in a mount
// table and, when cfg.AppDataRoot is set, prepares the custom root tree.
func openStorage(cfg *config.Config, logger *slog.Logger) (*storage, error) {
	s := &storage{}

	var base graph.Tree
	switch cfg.Backend {
	case config.BackendMemory:
		base = graph.NewMemoryStore()
	case config.BackendDisk:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		base = graph.NewBillyTree(osfs.New(cfg.DataDir))
	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		t, err := graph.OpenSQLiteTree(filepath.Join(cfg.DataDir, sqliteFile), cfg.ReadOnly)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, t.Close)
		base = t
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	s.tree = graph.NewMountTable(base)

	fc := appdata.FactoryConfig{
		InstanceID:    cfg.InstanceID,
		CacheCapacity: cfg.Cache.Capacity,
		Logger:        logger,
	}
	if cfg.AppDataRoot != "" {
		if err := os.MkdirAll(cfg.AppDataRoot, 0o755); err != nil {
			return nil, fmt.Errorf("create appdataroot: %w", err)
		}
		fc.CustomRoot = graph.NewBillyTree(osfs.New(cfg.AppDataRoot))
	}
	s.factory = appdata.NewFactory(s.tree, s.tree, fc)
	return s, nil
}

// app returns the resolver for appID. A missing instance id gets a hint.
func (s *storage) app(appID string) (*appdata.AppData, error) {
	a, err := s.factory.Get(appID)
	if err != nil {
		return nil, describe(err)
	}
	return a, nil
}

func (s *storage) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// describe adds operator guidance to configuration errors.
func describe(err error) error {
	if errors.Is(err, appdata.ErrNoInstanceID) {
		return fmt.Errorf("%w (run 'appdata init' or set APPDATA_INSTANCEID)", err)
	}
	return err
}
