package cli

import (
	"strings"

	"github.com/mobile-next/handsfree/commands"
	"github.com/mobile-next/handsfree/engine"
	"github.com/spf13/cobra"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Voice grammar commands",
}

var voiceParseCmd = &cobra.Command{
	Use:   "parse [utterance...]",
	Short: "Show the actions an utterance maps to",
	Long:  `Matches an utterance against the voice grammar and prints the rule and actions, without performing them.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		grammar, err := engine.NewGrammar(c)
		if err != nil {
			return err
		}

		response := commands.VoiceParseCommand(grammar, strings.Join(args, " "))
		return printResponse(response)
	},
}

var voiceSitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the site shortcuts the grammar opens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadedConfig()
		if err != nil {
			return err
		}
		grammar, err := engine.NewGrammar(c)
		if err != nil {
			return err
		}
		return printResponse(commands.NewSuccessResponse(map[string]interface{}{"sites": grammar.Sites()}))
	},
}

func init() {
	rootCmd.AddCommand(voiceCmd)
	voiceCmd.AddCommand(voiceParseCmd)
	voiceCmd.AddCommand(voiceSitesCmd)
}
