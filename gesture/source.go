package gesture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/mobile-next/handsfree/sidecar"
	"go.uber.org/zap"
)

// ErrSourceClosed signals the normal end of a frame stream.
var ErrSourceClosed = errors.New("frame source closed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FrameSource delivers landmark frames. Next must return once ctx is done or
// Close is called. Close may be called more than once.
type FrameSource interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (Frame, error)
	Close() error
}

type wireFrame struct {
	T     int64        `json:"t"`
	Hands [][]Landmark `json:"hands"`
	Quit  bool         `json:"quit"`
}

// DecodeFrame parses one frame message.
func DecodeFrame(data []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return Frame{}, fmt.Errorf("invalid landmark frame: %w", err)
	}

	f := Frame{Quit: w.Quit}
	if w.T > 0 {
		f.Time = time.UnixMilli(w.T)
	} else {
		f.Time = time.Now()
	}
	for _, h := range w.Hands {
		f.Hands = append(f.Hands, Hand(h))
	}
	return f, nil
}

// WebsocketSource reads frames from the landmark sidecar.
type WebsocketSource struct {
	client *sidecar.Client
}

// NewWebsocketSource creates a source that connects to opts.URL on Open.
func NewWebsocketSource(opts sidecar.Options) *WebsocketSource {
	opts.Reconnect = true
	return &WebsocketSource{client: sidecar.NewClient(opts)}
}

func (s *WebsocketSource) Open(ctx context.Context) error {
	return s.client.Connect(ctx)
}

func (s *WebsocketSource) Next(ctx context.Context) (Frame, error) {
	for {
		data, err := s.client.Read(ctx)
		if err != nil {
			if errors.Is(err, sidecar.ErrClosed) {
				return Frame{}, ErrSourceClosed
			}
			return Frame{}, err
		}
		f, err := DecodeFrame(data)
		if err != nil {
			continue
		}
		return f, nil
	}
}

func (s *WebsocketSource) Close() error {
	return s.client.Close()
}

// JSONLSource replays frames from newline-delimited JSON.
type JSONLSource struct {
	lines *sidecar.Lines
	// Interval, when set, paces replay to a fixed frame rate.
	Interval time.Duration
	// Logger reports skipped lines; nil discards them.
	Logger *zap.Logger
}

// NewJSONLSource reads frames from r.
func NewJSONLSource(r io.Reader) *JSONLSource {
	return &JSONLSource{lines: sidecar.NewLines(r)}
}

func (s *JSONLSource) Open(ctx context.Context) error {
	return nil
}

func (s *JSONLSource) Next(ctx context.Context) (Frame, error) {
	if s.Interval > 0 {
		select {
		case <-time.After(s.Interval):
		case <-ctx.Done():
			return Frame{}, ErrSourceClosed
		}
	}
	for {
		line, err := s.lines.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return Frame{}, ErrSourceClosed
			}
			return Frame{}, err
		}
		f, err := DecodeFrame(line)
		if err != nil {
			s.logger().Warn("skipping malformed landmark frame", zap.Error(err))
			continue
		}
		return f, nil
	}
}

func (s *JSONLSource) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *JSONLSource) Close() error {
	return s.lines.Close()
}
