package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agentic-research/appdata/api"
	"github.com/agentic-research/appdata/internal/appdata"
)

func newGetCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "get <app> [name]",
		Short: "Look up a folder of an app, creating the app folder on first use",
		Long:  `Look up a folder of an app. Without a name, or with "/", the app root folder is returned.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "/"
			if len(args) == 2 {
				name = args[1]
			}
			return st.withApp(args[0], func(a *appdata.AppData) error {
				f, err := a.GetFolder(name)
				if err != nil {
					return err
				}
				return st.printFolder(cmd.OutOrStdout(), f.Info())
			})
		},
	}
}

func newNewCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "new <app> <name>",
		Short: "Create a folder inside an app folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withApp(args[0], func(a *appdata.AppData) error {
				f, err := a.NewFolder(args[1])
				if err != nil {
					return err
				}
				return st.printFolder(cmd.OutOrStdout(), f.Info())
			})
		},
	}
}

func newLsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <app>",
		Short: "List the folders directly inside an app folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withApp(args[0], func(a *appdata.AppData) error {
				folders, err := a.ListFolders()
				if err != nil {
					return err
				}
				infos := make([]api.FolderInfo, 0, len(folders))
				for _, f := range folders {
					infos = append(infos, f.Info())
				}
				if st.jsonOut {
					return writeJSON(cmd.OutOrStdout(), infos)
				}
				return writeTable(cmd.OutOrStdout(), infos)
			})
		},
	}
}

func newIDCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "id <app>",
		Short: "Print the node id of an app folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.withApp(args[0], func(a *appdata.AppData) error {
				id, err := a.ID()
				if err != nil {
					return err
				}
				if st.jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"app_id": a.AppID(), "id": id})
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
				return err
			})
		},
	}
}

// withApp opens storage for one command and runs fn against appID.
func (st *cliState) withApp(appID string, fn func(a *appdata.AppData) error) error {
	s, err := openStorage(st.cfg, st.logger)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	a, err := s.app(appID)
	if err != nil {
		return err
	}
	return describe(fn(a))
}

func (st *cliState) printFolder(w io.Writer, info api.FolderInfo) error {
	if st.jsonOut {
		return writeJSON(w, info)
	}
	return writeTable(w, []api.FolderInfo{info})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, infos []api.FolderInfo) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, info := range infos {
		modified := "-"
		if !info.ModTime.IsZero() {
			modified = humanize.Time(info.ModTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", info.ID, info.Path, modified)
	}
	return tw.Flush()
}
