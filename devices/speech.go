package devices

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// ErrSpeakerClosed is returned by Say after Close.
var ErrSpeakerClosed = errors.New("speaker closed")

// SpeechOptions configure text-to-speech.
type SpeechOptions struct {
	// Command is the synthesizer binary; empty picks espeak-ng, espeak or say.
	Command string
	// Rate is the speaking rate in words per minute.
	Rate int
	// Async makes Say return as soon as the text is queued.
	Async bool
	// QueueSize bounds pending utterances in async mode.
	QueueSize int
}

type speechRequest struct {
	ctx  context.Context
	text string
	done chan error
}

// Speaker serializes utterances through one worker so they never overlap.
type Speaker struct {
	opts   SpeechOptions
	run    runner
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
	queue  chan speechRequest
	wg     sync.WaitGroup
}

// NewSpeaker resolves the synthesizer and starts the speech worker.
func NewSpeaker(opts SpeechOptions, logger *zap.Logger) (*Speaker, error) {
	if opts.Command == "" {
		opts.Command = findSynthesizer()
	}
	if opts.Command == "" {
		return nil, fmt.Errorf("no speech synthesizer found: %w", ErrDeviceUnavailable)
	}
	return newSpeaker(opts, newExecRunner(), logger), nil
}

func newSpeaker(opts SpeechOptions, run runner, logger *zap.Logger) *Speaker {
	if opts.Rate <= 0 {
		opts.Rate = 175
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Speaker{
		opts:   opts,
		run:    run,
		logger: logger.Named("speech"),
		queue:  make(chan speechRequest, opts.QueueSize),
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

func findSynthesizer() string {
	candidates := []string{"espeak-ng", "espeak", "spd-say"}
	if runtime.GOOS == "darwin" {
		candidates = []string{"say"}
	}
	for _, name := range candidates {
		if _, err := exec.LookPath(name); err == nil {
			return name
		}
	}
	return ""
}

func (s *Speaker) worker() {
	defer s.wg.Done()
	for req := range s.queue {
		err := s.speak(req.ctx, req.text)
		if err != nil {
			s.logger.Warn("speech failed", zap.String("text", req.text), zap.Error(err))
		}
		if req.done != nil {
			req.done <- err
		}
	}
}

func (s *Speaker) speak(ctx context.Context, text string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	_, err := s.run(ctx, s.opts.Command, synthesizerArgs(s.opts.Command, s.opts.Rate, text)...)
	return err
}

func synthesizerArgs(command string, rate int, text string) []string {
	switch command {
	case "say":
		return []string{"-r", strconv.Itoa(rate), text}
	case "spd-say":
		return []string{"--wait", text}
	default:
		return []string{"-s", strconv.Itoa(rate), text}
	}
}

// Say speaks text. In async mode it only queues the text, dropping it when
// the queue is full; otherwise it waits until speech finishes.
func (s *Speaker) Say(ctx context.Context, text string) error {
	if s.opts.Async {
		queued, err := s.enqueue(speechRequest{ctx: context.WithoutCancel(ctx), text: text}, false)
		if err != nil {
			return err
		}
		if !queued {
			s.logger.Warn("speech queue full, dropping utterance", zap.String("text", text))
		}
		return nil
	}

	done := make(chan error, 1)
	if _, err := s.enqueue(speechRequest{ctx: ctx, text: text, done: done}, true); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Speaker) enqueue(req speechRequest, wait bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrSpeakerClosed
	}

	if wait {
		select {
		case s.queue <- req:
			return true, nil
		case <-req.ctx.Done():
			return false, req.ctx.Err()
		}
	}
	select {
	case s.queue <- req:
		return true, nil
	default:
		return false, nil
	}
}

// Close stops accepting text and waits for queued speech to finish.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
