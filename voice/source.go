package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"github.com/mobile-next/handsfree/sidecar"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LineSource yields one utterance per input line.
type LineSource struct {
	lines *sidecar.Lines
}

// NewLineSource reads utterances from r.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{lines: sidecar.NewLines(r)}
}

func (s *LineSource) Open(ctx context.Context) error {
	return nil
}

func (s *LineSource) Next(ctx context.Context) (string, error) {
	line, err := s.lines.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return "", ErrSourceClosed
		}
		return "", err
	}
	return string(line), nil
}

func (s *LineSource) Close() error {
	return s.lines.Close()
}

// VoskOptions configure a Vosk server connection.
type VoskOptions struct {
	Sidecar    sidecar.Options
	SampleRate int
	// BlockSize is the number of PCM bytes sent per message.
	BlockSize int
}

type voskConfig struct {
	Config struct {
		SampleRate int `json:"sample_rate"`
	} `json:"config"`
}

type voskResult struct {
	Text    *string `json:"text"`
	Partial string  `json:"partial"`
}

// VoskSource streams 16-bit mono PCM to a Vosk server and yields its final
// transcriptions.
type VoskSource struct {
	opts   VoskOptions
	audio  io.Reader
	client *sidecar.Client
	logger *zap.Logger

	closeOnce sync.Once
	done      chan struct{}
	eofSent   atomic.Bool
}

// NewVoskSource creates a source streaming audio to the server at opts.Sidecar.URL.
func NewVoskSource(opts VoskOptions, audio io.Reader) *VoskSource {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.BlockSize <= 0 {
		opts.BlockSize = 8000
	}
	opts.Sidecar.Reconnect = false
	logger := opts.Sidecar.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoskSource{
		opts:   opts,
		audio:  audio,
		client: sidecar.NewClient(opts.Sidecar),
		logger: logger.Named("vosk"),
		done:   make(chan struct{}),
	}
}

// Open connects, sends the recognizer configuration and starts streaming audio.
func (s *VoskSource) Open(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return err
	}

	var cfg voskConfig
	cfg.Config.SampleRate = s.opts.SampleRate
	if err := s.client.WriteJSON(cfg); err != nil {
		_ = s.client.Close()
		return fmt.Errorf("failed to configure recognizer: %w", err)
	}

	go s.stream()
	return nil
}

type audioChunk struct {
	data []byte
	err  error
}

// readAudio reads blocks on its own goroutine so stream can stop even when
// the audio reader ignores Close.
func (s *VoskSource) readAudio() <-chan audioChunk {
	chunks := make(chan audioChunk)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, s.opts.BlockSize)
			n, err := s.audio.Read(buf)
			select {
			case chunks <- audioChunk{data: buf[:n], err: err}:
			case <-s.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return chunks
}

func (s *VoskSource) stream() {
	chunks := s.readAudio()
	for {
		var chunk audioChunk
		select {
		case <-s.done:
			return
		case chunk = <-chunks:
		}

		if len(chunk.data) > 0 {
			if werr := s.client.WriteBinary(chunk.data); werr != nil {
				s.logger.Debug("audio write stopped", zap.Error(werr))
				return
			}
		}
		if err := chunk.err; err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("audio input failed", zap.Error(err))
			}
			s.eofSent.Store(true)
			if werr := s.client.WriteJSON(map[string]int{"eof": 1}); werr != nil {
				s.logger.Debug("failed to send eof", zap.Error(werr))
			}
			return
		}
	}
}

// Next returns the next non-empty final transcription.
func (s *VoskSource) Next(ctx context.Context) (string, error) {
	for {
		data, err := s.client.Read(ctx)
		if err != nil {
			// the server closes the connection after the final result
			if errors.Is(err, sidecar.ErrClosed) || s.eofSent.Load() {
				return "", ErrSourceClosed
			}
			return "", err
		}

		var res voskResult
		if err := json.Unmarshal(data, &res); err != nil {
			s.logger.Debug("ignoring malformed recognizer message", zap.Error(err))
			continue
		}
		if res.Text != nil && *res.Text != "" {
			return *res.Text, nil
		}
	}
}

// Close stops streaming and disconnects.
func (s *VoskSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if c, ok := s.audio.(io.Closer); ok {
			_ = c.Close()
		}
		err = s.client.Close()
	})
	return err
}
