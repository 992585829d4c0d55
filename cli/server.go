package cli

import (
	"errors"
	"fmt"

	"github.com/mobile-next/handsfree/commands"
	"github.com/mobile-next/handsfree/daemon"
	"github.com/mobile-next/handsfree/server"
	"github.com/mobile-next/handsfree/utils"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Server management commands",
	Long:  `Commands for running the engine with its JSON-RPC API and stopping it again.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the engine with the API server",
	Long:  `Starts the engine and serves the JSON-RPC API, the websocket API and the live action feed.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}

		// GetBool/GetString cannot fail for defined flags
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			c.Server.Listen = listen
		}
		if enableCORS, _ := cmd.Flags().GetBool("cors"); enableCORS {
			c.Server.CORS = true
		}
		isDaemon, _ := cmd.Flags().GetBool("daemon")

		if isDaemon && !daemon.IsChild() {
			// the detached child cannot report a busy port, check it here
			addr, err := server.NormalizeAddr(c.Server.Listen)
			if err != nil {
				return err
			}
			if err := utils.CheckListenAddr(addr); err != nil {
				return err
			}

			_, err = daemon.Daemonize()
			if err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			fmt.Printf("Server daemon spawned, attempting to listen on %s\n", c.Server.Listen)
			return nil
		}

		return commands.RunCommand(cmd.Context(), c, commands.RunOptions{
			Serve:     true,
			LoadToken: server.LoadToken,
		})
	},
}

var serverKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop a running handsfree server",
	Long:  `Connects to the server and sends a shutdown command via JSON-RPC.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}

		// GetString cannot fail for defined flags
		addr, _ := cmd.Flags().GetString("listen")
		if addr == "" {
			addr = c.Server.Listen
		}

		token, err := server.LoadToken()
		if err != nil && !errors.Is(err, server.ErrNoToken) {
			return err
		}

		if err := daemon.KillServer(addr, token); err != nil {
			return err
		}

		fmt.Printf("Server shutdown command sent successfully\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// add server subcommands
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverKillCmd)

	// server start flags
	serverStartCmd.Flags().String("listen", "", "Address to listen on (e.g., 'localhost:12000' or '0.0.0.0:13000')")
	serverStartCmd.Flags().Bool("cors", false, "Enable CORS support")
	serverStartCmd.Flags().BoolP("daemon", "d", false, "Run server in daemon mode (background)")

	// server kill flags
	serverKillCmd.Flags().String("listen", "", "Address of server to kill (default: server.listen)")
}
