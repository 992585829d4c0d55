package devices

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mobile-next/handsfree/utils"
)

// ShutdownHook runs named cleanup functions when the process stops, so input
// backends, speech workers and sidecar connections are released on
// SIGINT/SIGTERM as well as on a spoken "quit".
type ShutdownHook struct {
	mu    sync.Mutex
	hooks []namedHook
}

type namedHook struct {
	name string
	fn   func() error
}

func NewShutdownHook() *ShutdownHook {
	return &ShutdownHook{}
}

// Register adds a cleanup function. Hooks run in reverse registration order,
// so a resource registered after its dependency is released first.
func (s *ShutdownHook) Register(name string, cleanupFn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, namedHook{name: name, fn: cleanupFn})
	utils.Verbose("Registered shutdown hook: %s", name)
}

// Shutdown runs every hook once, continuing past failures, and returns the
// joined errors.
func (s *ShutdownHook) Shutdown() error {
	s.mu.Lock()
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]
		utils.Verbose("Running shutdown hook: %s", hook.name)
		if err := hook.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hook.name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown failed with %d error(s): %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Count returns the number of registered hooks.
func (s *ShutdownHook) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hooks)
}
