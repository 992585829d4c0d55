package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"github.com/mobile-next/handsfree/commands"
	"github.com/mobile-next/handsfree/config"
	"github.com/mobile-next/handsfree/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time with -ldflags "-X .../cli.version=..."
var version = "dev"

var (
	settings  = config.NewViper()
	cfg       *config.Config
	configErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "handsfree",
	Short: "Control the computer with hand gestures and voice",
	Long: `handsfree turns hand landmarks, gesture predictions and spoken commands
into mouse, keyboard, speech and browser actions.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// GetVersion returns the build version, falling back to the module version
// recorded by "go install".
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

func initConfig() {
	utils.SetVerbose(verbose)

	if configFile != "" {
		settings.SetConfigFile(configFile)
		if err := settings.ReadInConfig(); err != nil {
			configErr = fmt.Errorf("failed to read config %s: %w", configFile, err)
			return
		}
	}

	cfg, configErr = config.FromViper(settings)
	if configErr != nil {
		return
	}

	utils.InitLogger(utils.LogOptions{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		File:       cfg.Logger.File,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
	}, nil)
	if verbose {
		utils.SetVerbose(true)
	}
}

// loadedConfig returns the configuration read by initConfig.
func loadedConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, configErr
	}
	return cfg, nil
}

func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	// the flag is defined right before binding, Lookup cannot return nil
	_ = v.BindPFlag(key, cmd.Flags().Lookup(name))
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("backend", "", "input backend (xdotool, android, chrome or dryrun)")
	_ = settings.BindPFlag("device.backend", rootCmd.PersistentFlags().Lookup("backend"))
}

// Execute runs the root command; ctx is cancelled on SIGINT or SIGTERM.
func Execute(ctx context.Context) error {
	// enable microseconds in logs
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	return rootCmd.ExecuteContext(ctx)
}

// printResponse prints response and returns its error, so a failed command
// exits non-zero after printing the JSON.
func printResponse(response *commands.CommandResponse) error {
	printJson(response)
	return response.Err()
}

// printJson is a helper function to print JSON responses
func printJson(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(jsonData))
}
