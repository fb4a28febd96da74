package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

// ExportMetadata describes a running `appdata nfs` export.
type ExportMetadata struct {
	PID        int       `json:"pid"`
	InstanceID string    `json:"instance_id"`
	Backend    string    `json:"backend"`
	App        string    `json:"app,omitempty"`
	Port       int       `json:"port"`
	MountPoint string    `json:"mount_point,omitempty"`
	Writable   bool      `json:"writable"`
	Started    time.Time `json:"started"`
}

const exportSuffix = ".export.json"

// exportsDir returns the directory holding one sidecar file per running export.
func exportsDir() (string, error) {
	dir := filepath.Join(os.TempDir(), "appdata-exports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func exportPath(dir string, meta *ExportMetadata) string {
	return filepath.Join(dir, fmt.Sprintf("%d-%d%s", meta.PID, meta.Port, exportSuffix))
}

// saveExport records meta and returns the sidecar path for later removal.
func saveExport(meta *ExportMetadata) (string, error) {
	dir, err := exportsDir()
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	p := exportPath(dir, meta)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", err
	}
	return p, nil
}

// listExports returns the exports whose process is still alive. Sidecars of
// dead processes are removed.
func listExports() ([]*ExportMetadata, error) {
	dir, err := exportsDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var exports []*ExportMetadata
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, exportSuffix) {
			continue
		}
		p := filepath.Join(dir, name)
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		var meta ExportMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		if !isProcessRunning(meta.PID) {
			_ = os.Remove(p)
			continue
		}
		exports = append(exports, &meta)
	}
	return exports, nil
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds. Send signal 0 to check if alive.
	return process.Signal(syscall.Signal(0)) == nil
}

func newExportsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "exports",
		Short: "List running NFS exports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exports, err := listExports()
			if err != nil {
				return err
			}
			if st.jsonOut {
				if exports == nil {
					exports = []*ExportMetadata{}
				}
				return writeJSON(cmd.OutOrStdout(), exports)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range exports {
				scope := "*"
				if e.App != "" {
					scope = e.App
				}
				mount := e.MountPoint
				if mount == "" {
					mount = "-"
				}
				fmt.Fprintf(tw, "%d\tport %d\t%s\t%s\t%s\t%s\n",
					e.PID, e.Port, e.InstanceID, scope, mount, humanize.Time(e.Started))
			}
			return tw.Flush()
		},
	}
}
