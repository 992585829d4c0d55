package cli

import (
	"github.com/mobile-next/handsfree/commands"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input backends",
	Long:  `Lists the available input backends and, for Android, the devices adb can reach.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.DevicesCommand(cmd.Context(), showAllDevices)
		return printResponse(response)
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)

	// devices command flags
	devicesCmd.Flags().BoolVar(&showAllDevices, "all", false, "also show backends whose probe failed")
}
