package cli

import (
	"github.com/mobile-next/handsfree/commands"
	"github.com/mobile-next/handsfree/server"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gesture and voice engine",
	Long: `Starts the configured producers (hand landmarks, gesture classifier, voice)
and performs their actions until "exit" is spoken, a shutdown is requested or
the process is interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			c.Server.Listen = listen
		}
		if cmd.Flags().Changed("predictions") {
			c.Classifier.Enabled = true
		}
		return commands.RunCommand(cmd.Context(), c, commands.RunOptions{
			Serve:     serveAPI,
			LoadToken: server.LoadToken,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&serveAPI, "serve", false, "also start the JSON-RPC API and live feed")
	runCmd.Flags().String("listen", "", "API address when --serve is set (default localhost:12000)")
	runCmd.Flags().String("frames", "", "replay landmark frames from a JSONL file instead of the sidecar")
	runCmd.Flags().String("predictions", "", "replay classifier predictions from a JSONL file")
	runCmd.Flags().String("lines", "", "read utterances line by line from a file ('-' for stdin) instead of Vosk")

	bindFlag(settings, "gesture.file", runCmd, "frames")
	bindFlag(settings, "classifier.file", runCmd, "predictions")
	bindFlag(settings, "voice.lines", runCmd, "lines")
}
