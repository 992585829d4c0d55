package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mobile-next/handsfree/actions"
	"go.uber.org/zap"
)

// Config tunes the classifier producer.
type Config struct {
	Smoother   SmootherConfig
	ScrollStep int
	// Announce adds spoken "detected"/"maintained" feedback to every announcement.
	Announce bool
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Smoother:   DefaultSmootherConfig(),
		ScrollStep: 400,
	}
}

// Producer turns smoothed classifier labels into actions.
type Producer struct {
	cfg      Config
	smoother *Smoother
	labels   LabelTable
	sink     actions.Sink
	logger   *zap.Logger

	lastSpoken string
}

// NewProducer creates a producer. A nil table selects DefaultLabels.
func NewProducer(cfg Config, labels LabelTable, sink actions.Sink, logger *zap.Logger) *Producer {
	if labels == nil {
		labels = DefaultLabels(cfg.ScrollStep)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{
		cfg:      cfg,
		smoother: NewSmoother(cfg.Smoother),
		labels:   labels,
		sink:     sink,
		logger:   logger.Named("classifier"),
	}
}

// Handle feeds one prediction through the smoother and emits the mapped
// action when the smoother announces.
func (p *Producer) Handle(pred Prediction) {
	label, announce := p.smoother.Observe(pred)
	if !announce {
		return
	}

	action, known := p.labels.Lookup(label)
	if !known {
		p.logger.Debug("unmapped gesture label", zap.String("label", label))
		return
	}
	p.logger.Debug("gesture announced", zap.String("label", label), zap.Float64("confidence", pred.Confidence))

	if action != nil {
		p.sink.Emit(action)
	}
	if p.cfg.Announce {
		p.sink.Emit(actions.Say{Text: p.spoken(label)})
	}
}

func (p *Producer) spoken(label string) string {
	name := strings.ReplaceAll(label, "_", " ")
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	if label == p.lastSpoken {
		return name + " maintained"
	}
	p.lastSpoken = label
	return name + " detected"
}

// Run reads predictions until the context is done or the source ends.
// A source that cannot be opened is returned as an error.
func (p *Producer) Run(ctx context.Context, src PredictionSource) error {
	if err := src.Open(ctx); err != nil {
		return fmt.Errorf("failed to open classifier source: %w", err)
	}
	defer src.Close()

	stop := context.AfterFunc(ctx, func() { _ = src.Close() })
	defer stop()

	p.logger.Info("classifier producer started")
	for {
		pred, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrSourceClosed) || errors.Is(err, io.EOF) || ctx.Err() != nil {
				p.logger.Info("classifier source ended")
				return nil
			}
			return fmt.Errorf("classifier source failed: %w", err)
		}
		p.Handle(pred)
	}
}
