package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/spf13/cobra"

	"github.com/agentic-research/appdata/internal/nfsmount"
)

func newNFSCmd(st *cliState) *cobra.Command {
	var (
		listen     string
		app        string
		mountPoint string
		writable   bool
	)

	cmd := &cobra.Command{
		Use:   "nfs",
		Short: "Export the storage tree over NFSv3",
		Long: `Export the storage tree over NFSv3 until interrupted.
With --app only that app's folder is exported. With --writable clients may create folders.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = st.cfg.NFS.Listen
			}

			s, err := openStorage(st.cfg, st.logger)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			tfs := nfsmount.NewTreeFS(s.tree)
			if writable {
				tfs.SetWritable()
			}
			var exported billy.Filesystem = tfs
			if app != "" {
				a, err := s.app(app)
				if err != nil {
					return err
				}
				root, err := a.GetFolder("/")
				if err != nil {
					return describe(err)
				}
				if exported, err = tfs.Chroot("/" + root.Path()); err != nil {
					return err
				}
			}

			srv, err := nfsmount.NewServer(exported, listen)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()
			st.logger.Info("nfs export started", slog.Int("port", srv.Port()), slog.String("app", app), slog.Bool("writable", writable))

			meta := &ExportMetadata{
				PID:        os.Getpid(),
				InstanceID: st.cfg.InstanceID,
				Backend:    st.cfg.Backend,
				App:        app,
				Port:       srv.Port(),
				MountPoint: mountPoint,
				Writable:   writable,
				Started:    time.Now(),
			}
			if sidecar, err := saveExport(meta); err != nil {
				st.logger.Warn("could not record export", slog.Any("error", err))
			} else {
				defer func() { _ = os.Remove(sidecar) }()
			}

			if mountPoint != "" {
				if err := nfsmount.Mount(srv.Port(), mountPoint, writable); err != nil {
					return err
				}
				defer func() {
					if err := nfsmount.Unmount(mountPoint); err != nil {
						st.logger.Error("unmount failed", slog.String("mountpoint", mountPoint), slog.Any("error", err))
					}
				}()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving NFS on port %d\n", srv.Port())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			st.logger.Info("nfs export stopping", slog.Int("port", srv.Port()))
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from nfs.listen)")
	cmd.Flags().StringVar(&app, "app", "", "Export only this app's folder")
	cmd.Flags().StringVar(&mountPoint, "mountpoint", "", "Also mount the export here (needs sudo)")
	cmd.Flags().BoolVarP(&writable, "writable", "w", false, "Allow clients to create folders")
	return cmd
}
