package classifier

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

// ErrSourceClosed signals the normal end of a prediction stream.
var ErrSourceClosed = errors.New("prediction source closed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// PredictionSource delivers classifier predictions.
type PredictionSource interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) (Prediction, error)
	Close() error
}

type wirePrediction struct {
	T          int64   `json:"t"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// DecodePrediction parses one prediction message.
func DecodePrediction(data []byte) (Prediction, error) {
	var w wirePrediction
	if err := json.Unmarshal(data, &w); err != nil {
		return Prediction{}, fmt.Errorf("invalid prediction: %w", err)
	}
	p := Prediction{Label: w.Label, Confidence: w.Confidence, Time: time.UnixMilli(w.T)}
	if w.T == 0 {
		p.Time = time.Now()
	}
	return p, nil
}

// WebsocketSource reads predictions from the classifier sidecar.
type WebsocketSource struct {
	client *sidecar.Client
}

func NewWebsocketSource(opts sidecar.Options) *WebsocketSource {
	opts.Reconnect = true
	return &WebsocketSource{client: sidecar.NewClient(opts)}
}

func (s *WebsocketSource) Open(ctx context.Context) error {
	return s.client.Connect(ctx)
}

func (s *WebsocketSource) Next(ctx context.Context) (Prediction, error) {
	for {
		data, err := s.client.Read(ctx)
		if err != nil {
			if errors.Is(err, sidecar.ErrClosed) {
				return Prediction{}, ErrSourceClosed
			}
			return Prediction{}, err
		}
		if p, err := DecodePrediction(data); err == nil {
			return p, nil
		}
	}
}

func (s *WebsocketSource) Close() error {
	return s.client.Close()
}

// JSONLSource replays predictions from newline-delimited JSON.
type JSONLSource struct {
	lines *sidecar.Lines
	// Logger reports skipped lines; nil discards them.
	Logger *zap.Logger
}

func NewJSONLSource(r io.Reader) *JSONLSource {
	return &JSONLSource{lines: sidecar.NewLines(r)}
}

func (s *JSONLSource) Open(ctx context.Context) error {
	return nil
}

func (s *JSONLSource) Next(ctx context.Context) (Prediction, error) {
	for {
		line, err := s.lines.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return Prediction{}, ErrSourceClosed
			}
			return Prediction{}, err
		}
		p, err := DecodePrediction(line)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("skipping malformed prediction", zap.Error(err))
			}
			continue
		}
		return p, nil
	}
}

func (s *JSONLSource) Close() error {
	return s.lines.Close()
}
