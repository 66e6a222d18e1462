package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/adamancini/selfup/internal/interactive"
	"github.com/adamancini/selfup/internal/output"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage backups of replaced binaries",
		Long: `Backup manages the copies of the selfup binary taken before each update.

Backups are stored in ~/.cache/selfup/backups/ unless backups.dir is set.
Use 'selfup backup restore latest' to go back to the previous version.`,
	}

	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupRestoreCmd())
	cmd.AddCommand(newBackupDeleteCmd())
	cmd.AddCommand(newBackupPruneCmd())

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all backups",
		Long:  `List displays all available backups with their creation time, version, and size.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupList(cmd)
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a previous binary",
		Long: `Restore copies a backed up binary over the installed one.

Use 'latest' as the ID to restore the most recent backup.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeBackupIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupRestore(cmd, args[0], yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation prompt")

	return cmd
}

func newBackupDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a backup",
		Long:              `Delete removes a backup by its ID.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeBackupIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupDelete(cmd, args[0])
		},
	}
}

func newBackupPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove old backups",
		Long: `Prune deletes old backups, keeping only the most recent N backups.

By default, keeps backups.keep backups from the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = cfg.Backups.Keep
			}
			return runBackupPrune(cmd, keep)
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "Number of backups to keep")

	return cmd
}

// runBackupList lists all backups.
func runBackupList(cmd *cobra.Command) error {
	manager, err := newBackupManager(cfg)
	if err != nil {
		return err
	}

	backups, err := manager.List()
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	return output.NewWriter(cmd.OutOrStdout(), format).Render(backups, func(out io.Writer) error {
		if len(backups) == 0 {
			_, _ = fmt.Fprintln(out, "No backups found.")
			_, _ = fmt.Fprintf(out, "Backup directory: %s\n", manager.BackupDir())
			return nil
		}

		_, _ = fmt.Fprintf(out, "Backups stored in %s:\n\n", manager.BackupDir())

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tCreated\tVersion\tSize")
		for _, b := range backups {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				b.ID,
				b.CreatedAt.Format("2006-01-02 15:04:05"),
				b.Version,
				humanize.Bytes(uint64(b.Size)),
			)
		}
		return w.Flush()
	})
}

// runBackupRestore copies a backup over the installed binary.
func runBackupRestore(cmd *cobra.Command, id string, skipConfirm bool) error {
	manager, err := newBackupManager(cfg)
	if err != nil {
		return err
	}

	bak, err := manager.Get(id)
	if err != nil {
		return err
	}

	target, err := newUpdater(cfg, nil).InstallPath()
	if err != nil {
		return err
	}

	prompts := interactive.NewPrompterWithIO(cmd.InOrStdin(), cmd.OutOrStdout()).AssumeYes(skipConfirm)
	text := fmt.Sprintf("Restore %s from backup %s (created %s) to %s?",
		bak.Version, bak.ID, humanize.Time(bak.CreatedAt), target)
	ok, err := prompts.AskConfirm(text, "Restore Backup", "Restore", "Cancel")
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Restore cancelled.")
		return nil
	}

	if _, err := manager.Restore(bak.ID, target); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to %s\n", bak.Version, target)
	return nil
}

// runBackupDelete deletes a backup.
func runBackupDelete(cmd *cobra.Command, id string) error {
	manager, err := newBackupManager(cfg)
	if err != nil {
		return err
	}

	if err := manager.Delete(id); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Backup deleted: %s\n", id)
	return nil
}

// runBackupPrune removes old backups.
func runBackupPrune(cmd *cobra.Command, keep int) error {
	manager, err := newBackupManager(cfg)
	if err != nil {
		return err
	}

	result, err := manager.Prune(keep)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	return output.NewWriter(cmd.OutOrStdout(), format).Render(result, func(out io.Writer) error {
		if len(result.Deleted) == 0 {
			_, err := fmt.Fprintf(out, "No backups to prune. Keeping %d backups.\n", result.Kept)
			return err
		}

		_, _ = fmt.Fprintf(out, "Pruned %d backup(s), keeping %d:\n", len(result.Deleted), result.Kept)
		for _, b := range result.Deleted {
			_, _ = fmt.Fprintf(out, "  - %s (%s)\n", b.ID, b.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	})
}
