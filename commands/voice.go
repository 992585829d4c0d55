package commands

import (
	"errors"

	"github.com/mobile-next/handsfree/actions"
	"github.com/mobile-next/handsfree/voice"
)

// ParseResult is the outcome of matching one utterance.
type ParseResult struct {
	Utterance string   `json:"utterance"`
	Rule      string   `json:"rule"`
	Actions   []string `json:"actions"`
}

// VoiceParseCommand shows which rule accepts utterance and the actions it
// would queue, without performing them.
func VoiceParseCommand(grammar *voice.Grammar, utterance string) *CommandResponse {
	if utterance == "" {
		return NewErrorResponse(errors.New("utterance is required"))
	}

	list := grammar.Match(utterance)
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = actions.Describe(a)
	}
	return NewSuccessResponse(ParseResult{
		Utterance: utterance,
		Rule:      grammar.Rule(utterance),
		Actions:   names,
	})
}
