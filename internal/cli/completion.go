package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion script for timelock.

Bash:
  source <(timelock completion bash)

Zsh:
  timelock completion zsh > "${fpath[1]}/_timelock"

Fish:
  timelock completion fish | source

PowerShell:
  timelock completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		shell := args[0]
		out := cmd.OutOrStdout()

		var err error
		switch shell {
		case "bash":
			err = cmd.Root().GenBashCompletion(out)
		case "zsh":
			err = cmd.Root().GenZshCompletion(out)
		case "fish":
			err = cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			err = cmd.Root().GenPowerShellCompletionWithDesc(out)
		default:
			err = fmt.Errorf("unsupported shell type: %s", shell)
		}
		if err != nil {
			return fmt.Errorf("generate completion for %s: %w", shell, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
