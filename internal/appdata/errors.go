package appdata

import (
	"errors"
	"fmt"

	"github.com/agentic-research/appdata/internal/graph"
)

var (
	// ErrNoInstanceID means the deployment has no instance identity configured.
	// Nothing can be resolved without it.
	ErrNoInstanceID = errors.New("no instance id configured")

	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("appdata folder not found")

	// ErrFolderUnavailable means the namespace root or the app folder could
	// not be created because the storage tree refused the write.
	ErrFolderUnavailable = errors.New("could not get appdata folder")

	// ErrInvalidName means an app id or folder name would resolve outside
	// the app namespace.
	ErrInvalidName = errors.New("invalid appdata name")
)

// NotFoundError reports a folder that does not exist in an app namespace.
// It is the value recorded in the folder cache for negative lookups.
type NotFoundError struct {
	AppID string
	Name  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("appdata folder %s/%s not found", e.AppID, e.Name)
}

// Is makes NotFoundError match both ErrNotFound and graph.ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == graph.ErrNotFound
}
