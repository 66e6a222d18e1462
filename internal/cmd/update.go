package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/adamancini/selfup/internal/interactive"
	"github.com/adamancini/selfup/internal/lifecycle"
	"github.com/adamancini/selfup/internal/process"
	"github.com/adamancini/selfup/internal/update"
)

// newRestarter is replaced in tests so a successful cycle does not exec.
var newRestarter = func(path string) lifecycle.ProcessController {
	return process.NewRestarter(path, "version")
}

func newUpdateCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for a new release and install it",
		Long: `Update checks for a newer release and asks before installing it.

The download is verified against its published SHA-256 checksum and the
current binary is backed up before it is replaced. After a successful install
selfup relaunches itself. Pressing Ctrl-C at the confirmation cancels the update.

Updating needs a release build. A binary built without a version stamp
(version "dev") refuses to update; build it with
-ldflags "-X main.version=<version>" instead.

Examples:
  selfup update          # Ask before installing
  selfup update --yes    # Install without asking`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Install without asking for confirmation")

	return cmd
}

func runUpdate(cmd *cobra.Command, yes bool) error {
	if err := requireReleaseBuild(); err != nil {
		return err
	}

	manager, err := newBackupManager(cfg)
	if err != nil {
		return err
	}
	store, err := newStateStore(cfg)
	if err != nil {
		return err
	}

	updater := newUpdater(cfg, manager)
	installPath, err := updater.InstallPath()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	prompts := interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.OutOrStdout()).
		AssumeYes(yes || cfg.AssumeYes).
		WithContext(ctx)

	ctrl := lifecycle.New(updater, prompts, newRestarter(installPath),
		lifecycle.WithObserver(progressPrinter(cmd.ErrOrStderr())),
		lifecycle.WithOnInstalled(func(attempt string, info update.UpdateInfo) {
			if err := store.Begin(appVersion, info.Version, attempt); err != nil {
				log.WithError(err).Warn("failed to record update state")
			}
		}),
	)

	outcome, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}
	if outcome.Phase == lifecycle.PhaseFailed {
		return fmt.Errorf("update failed: %s", outcome.Reason)
	}
	return nil
}

// requireReleaseBuild rejects binaries whose version cannot be compared
// against a release, such as local "dev" builds.
func requireReleaseBuild() error {
	if _, err := update.ParseVersion(appVersion); err != nil {
		return fmt.Errorf("selfup was built without a version stamp (version %q); "+
			"install a release build or rebuild with -ldflags \"-X main.version=<version>\"", appVersion)
	}
	return nil
}

// progressPrinter prints download progress in verbose mode.
func progressPrinter(w io.Writer) lifecycle.Observer {
	return func(s lifecycle.Status) {
		if !verbose || s.Progress == nil {
			return
		}
		_, _ = fmt.Fprintf(w, "%s: %s\n", s.Phase, s.Progress)
	}
}
