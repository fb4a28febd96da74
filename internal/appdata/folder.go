package appdata

import (
	"time"

	"github.com/agentic-research/appdata/api"
	"github.com/agentic-research/appdata/internal/graph"
)

// Folder is a handle on a folder node of an app namespace.
// Several handles may point at the same node.
type Folder struct {
	appID string
	node  graph.Node
}

func newFolder(appID string, n *graph.Node) *Folder {
	return &Folder{appID: appID, node: *n}
}

// Name returns the folder name.
func (f *Folder) Name() string { return f.node.Name() }

// ID returns the storage tree identifier of the folder.
func (f *Folder) ID() uint64 { return f.node.ID }

// Path returns the full tree path, including the namespace root.
func (f *Folder) Path() string { return f.node.Path }

// ModTime returns the modification time reported by the tree.
func (f *Folder) ModTime() time.Time { return f.node.ModTime }

// AppID returns the app namespace the folder was resolved in.
func (f *Folder) AppID() string { return f.appID }

// Info returns the serializable view of the folder.
func (f *Folder) Info() api.FolderInfo {
	return api.FolderInfo{
		AppID:   f.appID,
		Name:    f.Name(),
		Path:    f.Path(),
		ID:      f.ID(),
		ModTime: f.ModTime(),
	}
}
