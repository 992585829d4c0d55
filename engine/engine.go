// Package engine runs the producers and the executor under one cancellation
// scope.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mobile-next/handsfree/actions"
	"github.com/mobile-next/handsfree/devices"
	"github.com/mobile-next/handsfree/executor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Policy says which producers must start for the engine to keep running.
// A failing optional producer is logged and the engine continues without it.
type Policy struct {
	RequireGesture    bool
	RequireVoice      bool
	RequireClassifier bool
}

// Producer states reported by Status.
const (
	StateRunning = "running"
	StateStopped = "stopped"
	StateFailed  = "failed"
)

// RunFunc is a producer loop. It returns nil when its source ends or ctx is
// done.
type RunFunc func(ctx context.Context) error

type producer struct {
	name     string
	required bool
	run      RunFunc
}

// ProducerStatus describes one producer.
type ProducerStatus struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

// Status is a snapshot for diagnostics.
type Status struct {
	Running   bool             `json:"running"`
	Queued    int              `json:"queued"`
	Producers []ProducerStatus `json:"producers"`
	Executor  executor.Stats   `json:"executor"`
}

// Engine owns the bus, the executor and the producers. An engine runs once.
type Engine struct {
	bus      *actions.Bus
	executor *executor.Executor
	hooks    *devices.ShutdownHook
	logger   *zap.Logger

	producers []producer

	mu      sync.Mutex
	running bool
	states  map[string]ProducerStatus
}

// New creates an engine around an existing bus and executor.
func New(bus *actions.Bus, exec *executor.Executor, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		bus:      bus,
		executor: exec,
		hooks:    devices.NewShutdownHook(),
		logger:   logger.Named("engine"),
		states:   map[string]ProducerStatus{},
	}
}

func (e *Engine) Bus() *actions.Bus {
	return e.bus
}

func (e *Engine) Executor() *executor.Executor {
	return e.executor
}

// OnShutdown registers cleanup to run from Close.
func (e *Engine) OnShutdown(name string, fn func() error) {
	e.hooks.Register(name, fn)
}

// Add registers a producer. Producers must be added before Run.
func (e *Engine) Add(name string, required bool, run RunFunc) {
	e.producers = append(e.producers, producer{name: name, required: required, run: run})
	e.setState(ProducerStatus{Name: name, Required: required, State: StateStopped})
}

func (e *Engine) setState(s ProducerStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states[s.Name] = s
}

// Status reports producer states and executor counters.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := Status{Running: e.running, Queued: e.bus.Len()}
	for _, s := range e.states {
		st.Producers = append(st.Producers, s)
	}
	e.mu.Unlock()

	sort.Slice(st.Producers, func(i, j int) bool { return st.Producers[i].Name < st.Producers[j].Name })
	st.Executor = e.executor.Stats()
	return st
}

// Run starts every producer and the executor. It returns when the executor
// stops: on Quit, when ctx is done, when every producer has finished and the
// bus is drained, or when a required producer fails.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("engine already running")
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	var producers sync.WaitGroup
	for _, p := range e.producers {
		producers.Add(1)
		g.Go(func() error {
			defer producers.Done()
			return e.runProducer(gctx, p)
		})
	}

	g.Go(func() error {
		producers.Wait()
		e.bus.Close()
		return nil
	})

	g.Go(func() error {
		// Quit ends the executor; every producer observes the cancellation.
		defer cancel()
		return e.executor.Run(gctx, e.bus)
	})

	e.logger.Info("engine started", zap.Int("producers", len(e.producers)))
	err := g.Wait()
	e.logger.Info("engine stopped", zap.Error(err))
	return err
}

func (e *Engine) runProducer(ctx context.Context, p producer) error {
	e.setState(ProducerStatus{Name: p.name, Required: p.required, State: StateRunning})

	err := p.run(ctx)
	if err == nil || (ctx.Err() != nil && errors.Is(err, context.Canceled)) {
		e.setState(ProducerStatus{Name: p.name, Required: p.required, State: StateStopped})
		e.logger.Info("producer stopped", zap.String("producer", p.name))
		return nil
	}

	e.setState(ProducerStatus{Name: p.name, Required: p.required, State: StateFailed, Error: err.Error()})
	if p.required {
		e.logger.Error("required producer failed", zap.String("producer", p.name), zap.Error(err))
		return fmt.Errorf("%s producer failed: %w", p.name, err)
	}
	e.logger.Warn("continuing without "+p.name, zap.Error(err))
	return nil
}

// Close runs the registered shutdown hooks.
func (e *Engine) Close() error {
	return e.hooks.Shutdown()
}
