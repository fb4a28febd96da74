package api

import "time"

// FolderInfo is the serialized view of a resolved appdata folder.
// It is what the CLI prints with --json and what MCP tools return.
type FolderInfo struct {
	// AppID is the application namespace the folder belongs to.
	AppID string `json:"app_id"`
	// Name of the folder. The app root folder is named after the app.
	Name string `json:"name"`
	// Path of the folder inside the storage tree.
	Path string `json:"path"`
	// ID is the storage tree identifier of the folder node.
	ID uint64 `json:"id"`
	// ModTime as reported by the storage tree (optional).
	ModTime time.Time `json:"mod_time,omitempty"`
}

// CacheInfo describes the folder cache of one app namespace.
type CacheInfo struct {
	AppID      string  `json:"app_id"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	HitRate    float64 `json:"hit_rate"`
}
