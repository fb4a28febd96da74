package graph

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	kindFile   = 0
	kindFolder = 1
)

// SQLiteTree is a Tree persisted in a single SQLite nodes table.
//
// Each row is one node keyed by its full path; parent holds the parent path
// ("" for top-level nodes) so listings are a single indexed query. The tree
// root is implicit and never stored.
type SQLiteTree struct {
	db       *sql.DB
	dbPath   string
	readOnly bool
	mu       sync.Mutex // serializes creations; SQLite allows one writer anyway
}

// OpenSQLiteTree opens (and if needed initializes) the tree database at dbPath.
// A read-only tree reports ErrNotPermitted for every creation.
func OpenSQLiteTree(dbPath string, readOnly bool) (*SQLiteTree, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)"
	if readOnly {
		dsn += "&mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(2)

	if !readOnly {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS nodes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				path TEXT NOT NULL UNIQUE,
				parent TEXT NOT NULL,
				name TEXT NOT NULL,
				kind INTEGER NOT NULL,
				mtime INTEGER NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent, name);
		`)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create nodes table: %w", err)
		}
	}

	// Verify nodes table exists
	var count int
	if err := db.QueryRow("SELECT count(*) FROM sqlite_master WHERE type='table' AND name='nodes'").Scan(&count); err != nil || count == 0 {
		_ = db.Close()
		return nil, fmt.Errorf("nodes table not found in %s", dbPath)
	}

	return &SQLiteTree{db: db, dbPath: dbPath, readOnly: readOnly}, nil
}

// Get implements Tree.
func (t *SQLiteTree) Get(p string) (*Node, error) {
	p = CleanPath(p)
	if p == "" {
		return &Node{ID: 0, Path: "", Mode: fs.ModeDir | 0o755}, nil
	}
	return t.get(t.db, p)
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (t *SQLiteTree) get(q queryRower, p string) (*Node, error) {
	var id int64
	var kind int
	var mtimeNano int64
	err := q.QueryRow("SELECT id, kind, mtime FROM nodes WHERE path = ?", p).Scan(&id, &kind, &mtimeNano)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowNode(id, p, kind, mtimeNano), nil
}

func rowNode(id int64, p string, kind int, mtimeNano int64) *Node {
	mode := fs.FileMode(0o644)
	if kind == kindFolder {
		mode = fs.ModeDir | 0o755
	}
	return &Node{
		ID:      uint64(id),
		Path:    p,
		Mode:    mode,
		ModTime: time.Unix(0, mtimeNano),
	}
}

// NewFolder implements Tree.
func (t *SQLiteTree) NewFolder(p string) (*Node, error) {
	return t.insert(CleanPath(p), kindFolder)
}

// AddFile inserts a non-folder entry.
func (t *SQLiteTree) AddFile(p string) (*Node, error) {
	return t.insert(CleanPath(p), kindFile)
}

func (t *SQLiteTree) insert(p string, kind int) (*Node, error) {
	if p == "" {
		return nil, ErrAlreadyExists
	}
	if t.readOnly {
		return nil, ErrNotPermitted
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	tx, err := t.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin insert %s: %w", p, err)
	}
	defer func() { _ = tx.Rollback() }() // no-op if committed

	parent := parentPath(p)
	if parent != "" {
		pn, err := t.get(tx, parent)
		if err != nil {
			return nil, err
		}
		if !pn.IsFolder() {
			return nil, ErrNotFolder
		}
	}

	now := time.Now().UnixNano()
	name := p[strings.LastIndex(p, "/")+1:]
	res, err := tx.Exec(
		"INSERT INTO nodes (path, parent, name, kind, mtime) VALUES (?, ?, ?, ?, ?)",
		p, parent, name, kind, now,
	)
	if err != nil {
		if isConstraintErr(err) {
			return nil, ErrAlreadyExists
		}
		if isReadOnlyErr(err) {
			return nil, ErrNotPermitted
		}
		return nil, fmt.Errorf("insert node %s: %w", p, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert node %s: %w", p, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit node %s: %w", p, err)
	}
	return rowNode(id, p, kind, now), nil
}

// ListChildren implements Tree. Children are ordered by name.
func (t *SQLiteTree) ListChildren(p string) ([]*Node, error) {
	p = CleanPath(p)
	if p != "" {
		n, err := t.get(t.db, p)
		if err != nil {
			return nil, err
		}
		if !n.IsFolder() {
			return nil, ErrNotFolder
		}
	}

	rows, err := t.db.Query("SELECT id, path, kind, mtime FROM nodes WHERE parent = ? ORDER BY name", p)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", p, err)
	}
	defer func() { _ = rows.Close() }()

	var children []*Node
	for rows.Next() {
		var id, mtimeNano int64
		var cp string
		var kind int
		if err := rows.Scan(&id, &cp, &kind, &mtimeNano); err != nil {
			return nil, err
		}
		children = append(children, rowNode(id, cp, kind, mtimeNano))
	}
	return children, rows.Err()
}

// Close closes the database connection.
func (t *SQLiteTree) Close() error {
	return t.db.Close()
}

// DBPath returns the path to the tree database.
func (t *SQLiteTree) DBPath() string {
	return t.dbPath
}

func isConstraintErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isReadOnlyErr(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "readonly database") || errors.Is(err, fs.ErrPermission))
}

// Verify interface compliance at compile time.
var _ Tree = (*SQLiteTree)(nil)
