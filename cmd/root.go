package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/appdata/internal/config"
	"github.com/agentic-research/appdata/internal/logging"
)

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

// cliState carries flag values and the loaded configuration to subcommands.
type cliState struct {
	cfgFile string
	debug   bool
	jsonOut bool

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	st := &cliState{}

	root := &cobra.Command{
		Use:          "appdata",
		Short:        "Per-instance application data folders",
		Long:         "appdata manages the appdata_<instanceid>/<app> folder namespaces of a storage tree.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&st.cfgFile, "config", "c", "", "Path to config file (default ./appdata.yaml)")
	root.PersistentFlags().BoolVar(&st.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&st.jsonOut, "json", false, "Print JSON instead of text")

	root.AddCommand(
		newInitCmd(st),
		newGetCmd(st),
		newNewCmd(st),
		newLsCmd(st),
		newIDCmd(st),
		newNFSCmd(st),
		newMCPCmd(st),
		newExportsCmd(st),
	)
	return root
}

// load reads the configuration and installs the logger.
func (st *cliState) load(cmd *cobra.Command) error {
	cfg, err := config.Load(st.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.Setup(cmd.ErrOrStderr(), cfg.Log.Level, st.debug)
	if err != nil {
		return err
	}
	st.cfg = cfg
	st.logger = logger
	logger.Debug("config loaded",
		slog.String("backend", cfg.Backend),
		slog.String("datadir", cfg.DataDir),
		slog.Bool("custom_root", cfg.AppDataRoot != ""))
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
