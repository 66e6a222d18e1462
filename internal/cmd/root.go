package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adamancini/selfup/internal/config"
	"github.com/adamancini/selfup/internal/logging"
	"github.com/adamancini/selfup/internal/state"
)

var (
	// Global flags
	outputFormat string
	configPath   string
	logLevel     string
	logFile      string
	verbose      bool

	// Set by Execute
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"

	// Loaded in PersistentPreRunE
	cfg *config.Config
)

func Execute(version, commit, date string) error {
	appVersion, appCommit, appDate = version, commit, date
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "selfup",
		Short: "Keep the installed binary up to date",
		Long: `selfup checks for a newer release, asks before installing it, and relaunches
the application once the new binary is in place.

Releases come from GitHub or from a latest.json manifest, see --config.`,
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd
}

// setup loads configuration, initializes logging and reports the result of
// an update that relaunched this process.
func setup(cmd *cobra.Command) error {
	loaded, path, err := config.Resolve(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if verbose {
		level = "debug"
	}
	file := cfg.Log.File
	if logFile != "" {
		file = logFile
	}
	if err := logging.Init(level, file); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if path != "" {
		log.Debugf("loaded config from %s", path)
	}

	reportPostUpdate(cmd)
	return nil
}

func reportPostUpdate(cmd *cobra.Command) {
	store, err := newStateStore(cfg)
	if err != nil {
		log.WithError(err).Debug("update state unavailable")
		return
	}

	st, err := store.CheckPostUpdate(appVersion)
	if err != nil {
		log.WithError(err).Warn("failed to check previous update")
		return
	}
	if st == nil {
		return
	}

	out := cmd.ErrOrStderr()
	switch st.Status {
	case state.StatusCompleted:
		_, _ = fmt.Fprintf(out, "Updated to %s (previous: %s)\n", st.TargetVersion, st.PreviousVersion)
	case state.StatusFailed:
		_, _ = fmt.Fprintf(out, "Update to %s did not take effect, running %s.\n", st.TargetVersion, appVersion)
		_, _ = fmt.Fprintln(out, "Run 'selfup backup restore latest' to go back to the previous binary.")
	}
}
