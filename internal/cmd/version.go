package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/selfup/internal/output"
)

// VersionInfo is printed by the version command.
type VersionInfo struct {
	Version         string `json:"version" yaml:"version"`
	Commit          string `json:"commit" yaml:"commit"`
	Date            string `json:"date" yaml:"date"`
	Checked         bool   `json:"checked" yaml:"checked"`
	UpdateAvailable bool   `json:"update_available" yaml:"update_available"`
	Latest          string `json:"latest,omitempty" yaml:"latest,omitempty"`
	ReleaseDate     string `json:"release_date,omitempty" yaml:"release_date,omitempty"`
	ReleaseNotes    string `json:"release_notes,omitempty" yaml:"release_notes,omitempty"`
}

func (v VersionInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "selfup version %s (commit %s, built %s)", v.Version, v.Commit, v.Date)
	if !v.Checked {
		return b.String()
	}

	if !v.UpdateAvailable {
		b.WriteString("\nAlready running latest version")
		return b.String()
	}

	fmt.Fprintf(&b, "\nLatest version: %s available", v.Latest)
	if v.ReleaseNotes != "" {
		fmt.Fprintf(&b, "\n\nRelease notes:\n%s", v.ReleaseNotes)
	}
	b.WriteString("\n\nRun 'selfup update' to install")
	return b.String()
}

func newVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information and check for updates",
		Long: `Display the current selfup version and optionally check for updates.

Examples:
  selfup version              # Show current version
  selfup version --check      # Check if an update is available
  selfup version -o json      # Machine-readable output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd, check)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check for updates without installing")

	return cmd
}

func runVersion(cmd *cobra.Command, check bool) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	info := VersionInfo{Version: appVersion, Commit: appCommit, Date: appDate}

	if check {
		if err := requireReleaseBuild(); err != nil {
			return err
		}
		available, err := newUpdater(cfg, nil).CheckForUpdate(cmd.Context())
		if err != nil {
			return err
		}
		info.Checked = true
		if available != nil {
			info.UpdateAvailable = true
			info.Latest = available.Version
			info.ReleaseDate = available.ReleaseDate
			info.ReleaseNotes = available.ReleaseNotes
		}
	}

	return output.NewWriter(cmd.OutOrStdout(), format).Write(info)
}
