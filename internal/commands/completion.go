package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for ocb.

To load completions:

Bash:
  $ source <(ocb completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ ocb completion bash > /etc/bash_completion.d/ocb
  # macOS:
  $ ocb completion bash > $(brew --prefix)/etc/bash_completion.d/ocb

Zsh:
  $ source <(ocb completion zsh)
  # To load completions for each session, execute once:
  $ ocb completion zsh > "${fpath[1]}/_ocb"

Fish:
  $ ocb completion fish | source
  # To load completions for each session, execute once:
  $ ocb completion fish > ~/.config/fish/completions/ocb.fish

PowerShell:
  PS> ocb completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeCompletion(cmd.Root(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

func writeCompletion(root *cobra.Command, w io.Writer, shell string) error {
	var err error
	switch shell {
	case "bash":
		err = root.GenBashCompletion(w)
	case "zsh":
		err = root.GenZshCompletion(w)
	case "fish":
		err = root.GenFishCompletion(w, true)
	case "powershell":
		err = root.GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("unsupported shell %q", shell)
	}
	if err != nil {
		return fmt.Errorf("generating %s completion: %w", shell, err)
	}
	return nil
}
