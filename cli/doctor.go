package cli

import (
	"github.com/mobile-next/handsfree/commands"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run system diagnostics",
	Long:  `Checks for the programs the configured backend needs and whether the sidecars accept connections.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		response := commands.DoctorCommand(cmd.Context(), GetVersion(), c)
		return printResponse(response)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
