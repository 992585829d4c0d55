package voice

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"
	"github.com/mobile-next/handsfree/actions"
	"github.com/mobile-next/handsfree/sidecar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type recordingSink struct {
	mu      sync.Mutex
	actions []actions.Action
}

func (r *recordingSink) Emit(a actions.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
}

func TestProducer_RunWithLineSource(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &recordingSink{}
	p := NewProducer(NewGrammar(), sink, zaptest.NewLogger(t))

	input := "type hello world\n\nscroll up\nquit\n"
	require.NoError(t, p.Run(context.Background(), NewLineSource(strings.NewReader(input))))

	want := []actions.Action{
		actions.Say{Text: SayStarted},
		actions.TypeText{Text: "hello world"},
		actions.Scroll{Amount: 400},
		actions.Say{Text: SayQuitting},
		actions.Quit{},
	}
	if diff := cmp.Diff(want, sink.actions); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestProducer_TypeProducesSingleAction(t *testing.T) {
	sink := &recordingSink{}
	p := NewProducer(nil, sink, nil)
	p.Handle("type hello world")

	require.Len(t, sink.actions, 1)
	assert.Equal(t, actions.TypeText{Text: "hello world"}, sink.actions[0])
}

type failingSource struct{}

func (failingSource) Open(ctx context.Context) error           { return assert.AnError }
func (failingSource) Next(ctx context.Context) (string, error) { return "", ErrSourceClosed }
func (failingSource) Close() error                             { return nil }

func TestProducer_OpenFailureIsReturned(t *testing.T) {
	sink := &recordingSink{}
	p := NewProducer(nil, sink, nil)

	err := p.Run(context.Background(), failingSource{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, sink.actions, "no greeting without an open source")
}

type voskRecord struct {
	mu         sync.Mutex
	received   bytes.Buffer
	sampleRate int
}

// fakeVosk mimics the Vosk server websocket protocol.
func fakeVosk(t *testing.T, rec *voskRecord) *httptest.Server {
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var cfg voskConfig
		if err := conn.ReadJSON(&cfg); err != nil {
			t.Errorf("expected config message: %v", err)
			return
		}
		rec.mu.Lock()
		rec.sampleRate = cfg.Config.SampleRate
		rec.mu.Unlock()

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind == websocket.BinaryMessage {
				rec.mu.Lock()
				rec.received.Write(data)
				rec.mu.Unlock()
				continue
			}
			if strings.Contains(string(data), `"eof"`) {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"partial":"type hel"}`))
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"type hello world"}`))
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"text":""}`))
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"text":"open google"}`))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}))
}

func TestVoskSource_StreamsAudioAndYieldsFinalResults(t *testing.T) {
	rec := &voskRecord{}
	srv := fakeVosk(t, rec)
	defer srv.Close()

	audio := bytes.Repeat([]byte{1, 2}, 5000)
	src := NewVoskSource(VoskOptions{
		Sidecar:    sidecar.Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), MaxElapsed: time.Second},
		SampleRate: 16000,
		BlockSize:  4096,
	}, bytes.NewReader(audio))

	sink := &recordingSink{}
	p := NewProducer(nil, sink, zaptest.NewLogger(t))
	p.SetGreeting(false)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Run(ctx, src))

	want := []actions.Action{
		actions.TypeText{Text: "hello world"},
		actions.OpenURL{URL: "https://www.google.com"},
	}
	if diff := cmp.Diff(want, sink.actions); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, 16000, rec.sampleRate)
	assert.Equal(t, len(audio), rec.received.Len())
}

func TestVoskSource_ConnectFailure(t *testing.T) {
	src := NewVoskSource(VoskOptions{
		Sidecar: sidecar.Options{URL: "ws://127.0.0.1:1/", MaxElapsed: 300 * time.Millisecond},
	}, bytes.NewReader(nil))

	err := NewProducer(nil, &recordingSink{}, nil).Run(context.Background(), src)
	assert.Error(t, err)
}

func TestVoskSource_StopsWithAudioThatNeverEnds(t *testing.T) {
	rec := &voskRecord{}
	srv := fakeVosk(t, rec)
	defer srv.Close()

	pr, pw := io.Pipe()
	defer pw.Close()
	src := NewVoskSource(VoskOptions{
		Sidecar: sidecar.Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), MaxElapsed: time.Second},
	}, io.NopCloser(pr))

	p := NewProducer(nil, &recordingSink{}, zaptest.NewLogger(t))
	p.SetGreeting(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, src) }()

	_, err := pw.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run blocked on audio input after cancel")
	}
}

func TestLineSource_NextReturnsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	pr, pw := io.Pipe()
	src := NewLineSource(io.NopCloser(pr))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Next(ctx)
	assert.ErrorIs(t, err, ErrSourceClosed)

	require.NoError(t, src.Close())
	require.NoError(t, pw.Close())
}
