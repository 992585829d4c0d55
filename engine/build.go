package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mobile-next/handsfree/actions"
	"github.com/mobile-next/handsfree/classifier"
	"github.com/mobile-next/handsfree/config"
	"github.com/mobile-next/handsfree/devices"
	"github.com/mobile-next/handsfree/executor"
	"github.com/mobile-next/handsfree/gesture"
	"github.com/mobile-next/handsfree/sidecar"
	"github.com/mobile-next/handsfree/voice"
	"go.uber.org/zap"
)

// Built is an engine assembled from configuration, with the collaborators
// other layers need to reach.
type Built struct {
	*Engine
	Device  devices.InputDevice
	Gesture *gesture.Producer
}

// Build wires the configured input backend, speech, browser and producers
// into a ready-to-run engine. Close releases everything it opened.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Built, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	device, err := devices.Open(ctx, BackendConfig(cfg), logger)
	if err != nil {
		return nil, err
	}

	bus := actions.NewBus()
	if cfg.Bus.Trace {
		trace := logger.Named("bus")
		bus.Observe(func(env actions.Envelope) {
			trace.Debug("action",
				zap.String("id", env.ID),
				zap.String("source", env.Source),
				zap.String("action", actions.Describe(env.Action)))
		})
	}

	var execOpts []executor.Option
	var closers []namedCloser

	if cfg.Speech.Enabled {
		speaker, err := devices.NewSpeaker(devices.SpeechOptions{
			Command:   cfg.Speech.Command,
			Rate:      cfg.Speech.Rate,
			Async:     cfg.Speech.Async,
			QueueSize: cfg.Speech.QueueSize,
		}, logger)
		if err != nil {
			logger.Warn("continuing without speech", zap.Error(err))
		} else {
			execOpts = append(execOpts, executor.WithSpeaker(speaker))
			closers = append(closers, namedCloser{"speech", speaker.Close})
		}
	}

	if opener, ok := device.(executor.URLOpener); ok {
		execOpts = append(execOpts, executor.WithURLOpener(opener))
	} else {
		execOpts = append(execOpts, executor.WithURLOpener(devices.NewSystemBrowser()))
	}

	var gp *gesture.Producer
	if cfg.Gesture.Enabled {
		gp = gesture.NewProducer(GestureConfig(cfg), bus.Emitter(actions.SourceGesture), logger)
		execOpts = append(execOpts, executor.WithEnableRequester(gp))
	}

	exec := executor.New(ExecutorConfig(cfg), device, logger, execOpts...)
	e := New(bus, exec, logger)
	e.OnShutdown("input device", device.Close)
	for _, c := range closers {
		e.OnShutdown(c.name, c.fn)
	}

	built := &Built{Engine: e, Device: device, Gesture: gp}
	if err := built.addProducers(cfg, logger); err != nil {
		_ = e.Close()
		return nil, err
	}
	return built, nil
}

type namedCloser struct {
	name string
	fn   func() error
}

// PolicyFromConfig reads the per-producer "required" switches.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		RequireGesture:    cfg.Gesture.Required,
		RequireVoice:      cfg.Voice.Required,
		RequireClassifier: cfg.Classifier.Required,
	}
}

func (b *Built) addProducers(cfg *config.Config, logger *zap.Logger) error {
	bus := b.Bus()
	policy := PolicyFromConfig(cfg)

	if b.Gesture != nil {
		src, err := gestureSource(cfg, logger)
		if err != nil {
			return err
		}
		b.Add(actions.SourceGesture, policy.RequireGesture, func(ctx context.Context) error {
			return b.Gesture.Run(ctx, src)
		})
	}

	if cfg.Classifier.Enabled {
		labels := classifier.DefaultLabels(cfg.Classifier.ScrollStep)
		if cfg.Classifier.LabelsFile != "" {
			var err error
			if labels, err = classifier.LoadLabels(labels, cfg.Classifier.LabelsFile); err != nil {
				return err
			}
		}
		cp := classifier.NewProducer(ClassifierConfig(cfg), labels, bus.Emitter(actions.SourceClassifier), logger)
		src, err := classifierSource(cfg, logger)
		if err != nil {
			return err
		}
		b.Add(actions.SourceClassifier, policy.RequireClassifier, func(ctx context.Context) error {
			return cp.Run(ctx, src)
		})
	}

	if cfg.Voice.Enabled {
		grammar, err := NewGrammar(cfg)
		if err != nil {
			return err
		}
		vp := voice.NewProducer(grammar, bus.Emitter(actions.SourceVoice), logger)
		vp.SetGreeting(cfg.Voice.Greet)
		src, err := voiceSource(cfg, logger)
		if err != nil {
			return err
		}
		b.Add(actions.SourceVoice, policy.RequireVoice, func(ctx context.Context) error {
			return vp.Run(ctx, src)
		})
	}
	return nil
}

// BackendConfig maps the device section to backend options.
func BackendConfig(cfg *config.Config) devices.BackendConfig {
	d := cfg.Device
	return devices.BackendConfig{
		Backend: d.Backend,
		Xdotool: devices.XdotoolOptions{Display: d.Display, ScrollUnit: d.ScrollUnit},
		Android: devices.AndroidOptions{Serial: d.AndroidSerial, AdbPath: d.AdbPath},
		Chrome: devices.ChromeOptions{
			RemoteURL:     d.ChromeURL,
			StartURL:      d.ChromeStartURL,
			Headless:      d.ChromeHeadless,
			KeysPerSecond: d.KeysPerSecond,
		},
		FallbackSize: fallbackSize(cfg),
	}
}

func fallbackSize(cfg *config.Config) devices.ScreenSize {
	return devices.ScreenSize{Width: cfg.Executor.FallbackWidth, Height: cfg.Executor.FallbackHeight}
}

func ExecutorConfig(cfg *config.Config) executor.Config {
	return executor.Config{
		ClickInterval: cfg.Executor.ClickInterval,
		TypeInterval:  cfg.Executor.TypeInterval,
		ReleaseOnExit: cfg.Executor.ReleaseOnExit,
		FallbackSize:  fallbackSize(cfg),
	}
}

func GestureConfig(cfg *config.Config) gesture.Config {
	g := cfg.Gesture
	return gesture.Config{
		Alpha:          g.Alpha,
		PinchThreshold: g.PinchThreshold,
		ScrollGain:     g.ScrollGain,
		ScrollLimit:    g.ScrollLimit,
		ScrollDeadZone: g.ScrollDeadZone,
		StartEnabled:   g.StartEnabled,
	}
}

func ClassifierConfig(cfg *config.Config) classifier.Config {
	c := cfg.Classifier
	return classifier.Config{
		Smoother: classifier.SmootherConfig{
			Threshold: c.Threshold,
			Window:    c.Window,
			Debounce:  c.Debounce,
		},
		ScrollStep: c.ScrollStep,
		Announce:   c.Announce,
	}
}

// NewGrammar builds the voice grammar with the configured sites.
func NewGrammar(cfg *config.Config) (*voice.Grammar, error) {
	sites := voice.DefaultSites()
	if cfg.Voice.SitesFile != "" {
		var err error
		if sites, err = voice.LoadSites(sites, cfg.Voice.SitesFile); err != nil {
			return nil, err
		}
	}
	return voice.NewGrammar(voice.WithSites(sites), voice.WithScrollStep(cfg.Voice.ScrollStep)), nil
}

func gestureSource(cfg *config.Config, logger *zap.Logger) (gesture.FrameSource, error) {
	g := cfg.Gesture
	if g.File != "" {
		r, err := openInput(g.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open landmark file: %w", err)
		}
		src := gesture.NewJSONLSource(r)
		src.Interval = g.ReplayInterval
		src.Logger = logger
		return src, nil
	}
	return gesture.NewWebsocketSource(sidecar.Options{
		URL:        g.URL,
		MaxElapsed: g.ConnectTimeout,
		Logger:     logger,
	}), nil
}

func classifierSource(cfg *config.Config, logger *zap.Logger) (classifier.PredictionSource, error) {
	c := cfg.Classifier
	if c.File != "" {
		r, err := openInput(c.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open prediction file: %w", err)
		}
		src := classifier.NewJSONLSource(r)
		src.Logger = logger
		return src, nil
	}
	return classifier.NewWebsocketSource(sidecar.Options{
		URL:        c.URL,
		MaxElapsed: c.ConnectTimeout,
		Logger:     logger,
	}), nil
}

func voiceSource(cfg *config.Config, logger *zap.Logger) (voice.UtteranceSource, error) {
	v := cfg.Voice
	if v.Lines != "" {
		r, err := openInput(v.Lines)
		if err != nil {
			return nil, fmt.Errorf("failed to open utterance file: %w", err)
		}
		return voice.NewLineSource(r), nil
	}

	audio, err := openInput(v.Audio)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio input: %w", err)
	}
	return voice.NewVoskSource(voice.VoskOptions{
		Sidecar: sidecar.Options{
			URL:        v.VoskURL,
			MaxElapsed: v.ConnectTimeout,
			Logger:     logger,
		},
		SampleRate: v.SampleRate,
		BlockSize:  v.BlockSize,
	}, audio), nil
}

// openInput opens path for reading; "-" is stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}
