package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/treereplay/pkg/render"
	"github.com/matzehuels/treereplay/pkg/timeline"
)

// completionCommand prints a shell completion script for the given shell.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: fmt.Sprintf(`Generate a completion script for %[1]s. Besides commands and flags it
completes --format, --speed and --cursor values.

  bash:        source <(%[1]s completion bash)
  zsh:         %[1]s completion zsh > "${fpath[1]}/_%[1]s"
  fish:        %[1]s completion fish > ~/.config/fish/completions/%[1]s.fish
  powershell:  %[1]s completion powershell | Out-String | Invoke-Expression
`, appName),
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
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
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}

// completeFormats completes the comma-separated --format list, offering the
// formats not yet named.
func completeFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	done, prefix := "", toComplete
	if i := strings.LastIndex(toComplete, ","); i >= 0 {
		done, prefix = toComplete[:i+1], toComplete[i+1:]
	}
	used := make(map[string]bool)
	for _, f := range strings.Split(done, ",") {
		used[strings.ToLower(strings.TrimSpace(f))] = true
	}
	var out []string
	for _, f := range render.Formats {
		s := string(f)
		if !used[s] && strings.HasPrefix(s, strings.ToLower(prefix)) {
			out = append(out, done+s)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

func completeSpeeds(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	out := make([]string, 0, len(timeline.Speeds))
	for _, s := range timeline.Speeds {
		out = append(out, fmt.Sprintf("%s\t%s per step", s, s.Delay()))
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func completeCursor(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"last\tfinal step", "0\tfirst step"}, cobra.ShellCompDirectiveNoFileComp
}
