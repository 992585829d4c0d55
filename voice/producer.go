package voice

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/mobile-next/handsfree/actions"
	"go.uber.org/zap"
)

// ErrSourceClosed signals the normal end of an utterance stream.
var ErrSourceClosed = errors.New("utterance source closed")

// UtteranceSource yields final recognized utterances.
type UtteranceSource interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (string, error)
	Close() error
}

// Producer emits the grammar's actions for every utterance.
type Producer struct {
	grammar *Grammar
	sink    actions.Sink
	logger  *zap.Logger
	greet   bool
}

// NewProducer creates a voice producer.
func NewProducer(grammar *Grammar, sink actions.Sink, logger *zap.Logger) *Producer {
	if grammar == nil {
		grammar = NewGrammar()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{grammar: grammar, sink: sink, logger: logger.Named("voice"), greet: true}
}

// SetGreeting toggles the spoken greeting sent once the source is open.
func (p *Producer) SetGreeting(enabled bool) {
	p.greet = enabled
}

// Handle matches one utterance and emits the result in order.
func (p *Producer) Handle(utterance string) {
	out := p.grammar.Match(utterance)
	if len(out) == 0 {
		return
	}
	p.logger.Debug("utterance matched",
		zap.String("utterance", utterance),
		zap.String("rule", p.grammar.Rule(utterance)))
	for _, a := range out {
		p.sink.Emit(a)
	}
}

// Run reads utterances until the context is done or the source ends. A
// source that cannot be opened is returned as an error.
func (p *Producer) Run(ctx context.Context, src UtteranceSource) error {
	if err := src.Open(ctx); err != nil {
		return fmt.Errorf("failed to open speech source: %w", err)
	}
	defer src.Close()

	stop := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stop()

	if p.greet {
		p.sink.Emit(actions.Say{Text: SayStarted})
	}
	p.logger.Info("voice producer started")

	for {
		utterance, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrSourceClosed) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				p.logger.Info("speech source ended")
				return nil
			}
			return fmt.Errorf("speech source failed: %w", err)
		}
		p.Handle(utterance)
	}
}
