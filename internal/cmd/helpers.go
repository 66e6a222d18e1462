package cmd

import (
	"github.com/adamancini/selfup/internal/backup"
	"github.com/adamancini/selfup/internal/config"
	"github.com/adamancini/selfup/internal/state"
	"github.com/adamancini/selfup/internal/update"
)

// newChecker returns the release checker selected by the config.
func newChecker(c *config.Config) update.Checker {
	if c.Source == config.SourceManifest {
		return update.NewManifestChecker(c.Manifest.URL)
	}

	checker := update.NewGitHubChecker(c.GitHub.Owner, c.GitHub.Repo)
	if c.GitHub.Token != "" {
		checker = checker.WithToken(c.GitHub.Token)
	}
	return checker
}

func newBackupManager(c *config.Config) (*backup.Manager, error) {
	if c.Backups.Dir != "" {
		return backup.NewManagerWithDir(c.Backups.Dir), nil
	}
	return backup.NewManager()
}

func newStateStore(c *config.Config) (*state.Store, error) {
	if c.StateDir != "" {
		return state.NewStore(c.StateDir), nil
	}
	dir, err := state.DefaultDir()
	if err != nil {
		return nil, err
	}
	return state.NewStore(dir), nil
}

// newUpdater wires the update source for the running version.
func newUpdater(c *config.Config, archiver update.Archiver) *update.Updater {
	opts := []update.Option{
		update.WithArchiver(archiver, c.Backups.Keep),
	}
	if c.InstallPath != "" {
		opts = append(opts, update.WithInstallPath(c.InstallPath))
	}
	return update.NewUpdater(appVersion, newChecker(c), opts...)
}
