package cli

import (
	"strings"

	"github.com/mobile-next/handsfree/actions"
	"github.com/mobile-next/handsfree/commands"
	"github.com/spf13/cobra"
)

var ioCmd = &cobra.Command{
	Use:   "io",
	Short: "Perform a single input action",
	Long: `Performs one action on the configured input backend, the same way the engine
would. Coordinates are normalized to 0..10000 on each axis.`,
}

// newIOCmd builds an io subcommand performing kind. Remaining arguments are
// joined into the action's argument.
func newIOCmd(use, short, kind string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadedConfig()
			if err != nil {
				return err
			}

			req := commands.ActionRequest{
				Kind: kind,
				Arg:  strings.Join(args, " "),
			}

			response := commands.ActionCommand(cmd.Context(), c, req)
			return printResponse(response)
		},
	}
}

func init() {
	rootCmd.AddCommand(ioCmd)

	// add io subcommands
	ioCmd.AddCommand(
		newIOCmd("move [x,y]", "Move the pointer to normalized coordinates", actions.KindMove, cobra.ExactArgs(1)),
		newIOCmd("down", "Press and hold the primary button", actions.KindButtonDown, cobra.NoArgs),
		newIOCmd("up", "Release the primary button", actions.KindButtonUp, cobra.NoArgs),
		newIOCmd("click", "Click the primary button", actions.KindClick, cobra.NoArgs),
		newIOCmd("doubleclick", "Double click the primary button", actions.KindDoubleClick, cobra.NoArgs),
		newIOCmd("scroll [amount]", "Scroll by a signed amount, positive is up", actions.KindScroll, cobra.ExactArgs(1)),
		newIOCmd("text [text...]", "Type text", actions.KindTypeText, cobra.MinimumNArgs(1)),
		newIOCmd("say [text...]", "Speak text", actions.KindSay, cobra.MinimumNArgs(1)),
		newIOCmd("url [url]", "Open a URL", actions.KindOpenURL, cobra.ExactArgs(1)),
	)
}
