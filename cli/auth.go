package cli

import (
	"github.com/mobile-next/handsfree/commands"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "API token management",
	Long:  `Manages the token clients must present to the API server. The token is kept in the OS keyring.`,
}

var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the API token",
}

var authTokenGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and store a random API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.TokenGenerateCommand(commands.KeyringTokens))
	},
}

var authTokenSetCmd = &cobra.Command{
	Use:   "set [token]",
	Short: "Store an API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.TokenSetCommand(commands.KeyringTokens, args[0]))
	},
}

var authTokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.TokenShowCommand(commands.KeyringTokens))
	},
}

var authTokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.TokenClearCommand(commands.KeyringTokens))
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authTokenCmd)
	authTokenCmd.AddCommand(authTokenGenerateCmd, authTokenSetCmd, authTokenShowCmd, authTokenClearCmd)
}
