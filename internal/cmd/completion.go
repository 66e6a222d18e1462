package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/selfup/internal/config"
)

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish]",
		Short: "Generate shell completion script",
		Long: `Completion prints a shell completion script for selfup.

Besides subcommands and flags, the scripts complete backup IDs for
'selfup backup restore' and 'selfup backup delete', including 'latest'.

Bash:
  $ source <(selfup completion bash)
  $ selfup completion bash > ~/.local/share/bash-completion/completions/selfup

Zsh:
  $ selfup completion zsh > "${fpath[1]}/_selfup"

Fish:
  $ selfup completion fish > ~/.config/fish/completions/selfup.fish

Start a new shell afterwards.`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			}
			return nil
		},
	}
}

// completeBackupIDs offers "latest" and the stored backup IDs, newest first.
// Completion skips PersistentPreRunE, so the config is resolved here.
func completeBackupIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	c, _, err := config.Resolve(configPath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	manager, err := newBackupManager(c)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	backups, err := manager.List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var ids []string
	if strings.HasPrefix("latest", toComplete) {
		ids = append(ids, "latest\tmost recent backup")
	}
	for _, b := range backups {
		if strings.HasPrefix(b.ID, toComplete) {
			ids = append(ids, b.ID+"\t"+b.Version)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
