package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/appdata/internal/config"
	"github.com/agentic-research/appdata/internal/logging"
)

const defaultConfigFile = "appdata.yaml"

func newInitCmd(st *cliState) *cobra.Command {
	var (
		force       bool
		backend     string
		dataDir     string
		appDataRoot string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with a fresh instance id",
		Args:  cobra.NoArgs,
		// The config file may not exist yet, so only logging is set up.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.Setup(cmd.ErrOrStderr(), "info", st.debug)
			st.logger = logger
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := st.cfgFile
			if path == "" {
				path = defaultConfigFile
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config %s already exists (use --force to replace it)", path)
			}

			cfg := config.DefaultConfig()
			cfg.InstanceID = config.NewInstanceID()
			if backend != "" {
				cfg.Backend = backend
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			cfg.AppDataRoot = appDataRoot
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			st.logger.Info("config written", "path", path, "instanceid", cfg.InstanceID)

			if st.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"config": path, "instanceid": cfg.InstanceID})
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), cfg.InstanceID)
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing config file")
	cmd.Flags().StringVar(&backend, "backend", "", "Storage backend: memory, disk or sqlite")
	cmd.Flags().StringVar(&dataDir, "datadir", "", "Data directory for the disk and sqlite backends")
	cmd.Flags().StringVar(&appDataRoot, "appdataroot", "", "Custom storage root directory")
	return cmd
}
