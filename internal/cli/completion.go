package cli

import (
	"github.com/spf13/cobra"
)

// completionCommand generates shell completion scripts.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for docsmith.

To load completions:

Bash:
  $ source <(docsmith completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ docsmith completion bash > /etc/bash_completion.d/docsmith
  # macOS:
  $ docsmith completion bash > $(brew --prefix)/etc/bash_completion.d/docsmith

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ docsmith completion zsh > "${fpath[1]}/_docsmith"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ docsmith completion fish | source

  # To load completions for each session, execute once:
  $ docsmith completion fish > ~/.config/fish/completions/docsmith.fish

PowerShell:
  PS> docsmith completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> docsmith completion powershell > docsmith.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// Completion must work without a readable config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}
