package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mobile-next/handsfree/actions"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Feed message types.
const (
	FeedAction   = "action"
	FeedStatus   = "status"
	FeedExecuted = "executed"
)

const (
	feedBuffer     = 64
	feedPingPeriod = 30 * time.Second
	feedWriteWait  = 5 * time.Second
)

// FeedMessage is one JSON message on /ws/feed.
type FeedMessage struct {
	Type     string            `json:"type"`
	Envelope *actions.Envelope `json:"envelope,omitempty"`
	Status   string            `json:"status,omitempty"`
	ID       string            `json:"id,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type feedClient struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *feedClient) close() {
	c.once.Do(func() { close(c.done) })
}

// Feed fans bus traffic out to websocket subscribers. Slow subscribers lose
// messages rather than stall the bus; MOVE envelopes are rate limited.
type Feed struct {
	mu      sync.Mutex
	clients map[*feedClient]struct{}
	moves   *rate.Limiter
	logger  *zap.Logger
}

// NewFeed creates a hub passing at most moveRate MOVE envelopes per second;
// zero or less disables the limit.
func NewFeed(moveRate float64, logger *zap.Logger) *Feed {
	limit := rate.Inf
	if moveRate > 0 {
		limit = rate.Limit(moveRate)
	}
	return &Feed{
		clients: map[*feedClient]struct{}{},
		moves:   rate.NewLimiter(limit, 1),
		logger:  logger.Named("feed"),
	}
}

// PublishEnvelope forwards a bus envelope.
func (f *Feed) PublishEnvelope(env actions.Envelope) {
	if _, ok := env.Action.(actions.Move); ok && !f.moves.Allow() {
		return
	}
	f.broadcast(FeedMessage{Type: FeedAction, Envelope: &env})
}

// PublishStatus forwards a gesture status such as "no_hand".
func (f *Feed) PublishStatus(status string) {
	f.broadcast(FeedMessage{Type: FeedStatus, Status: status})
}

// PublishResult reports that the executor finished an envelope.
func (f *Feed) PublishResult(env actions.Envelope, err error) {
	if _, ok := env.Action.(actions.Move); ok && err == nil {
		return
	}
	msg := FeedMessage{Type: FeedExecuted, ID: env.ID}
	if err != nil {
		msg.Error = err.Error()
	}
	f.broadcast(msg)
}

func (f *Feed) broadcast(msg FeedMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		f.logger.Error("failed to encode feed message", zap.Error(err))
		return
	}
	for c := range f.clients {
		select {
		case c.send <- data:
		default:
			f.logger.Debug("feed client too slow, dropping message")
		}
	}
}

func (f *Feed) subscribe() *feedClient {
	c := &feedClient{send: make(chan []byte, feedBuffer), done: make(chan struct{})}
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	return c
}

func (f *Feed) unsubscribe(c *feedClient) {
	f.mu.Lock()
	delete(f.clients, c)
	f.mu.Unlock()
	c.close()
}

// Clients returns the number of subscribers.
func (f *Feed) Clients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// CloseAll disconnects every subscriber.
func (f *Feed) CloseAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		c.close()
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := newUpgrader(s.opts.CORS).Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("feed upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := s.feed.subscribe()
	defer s.feed.unsubscribe(client)
	s.logger.Debug("feed client connected", zap.String("remote", r.RemoteAddr))

	// the feed is one-way; reading only detects the peer closing
	go func() {
		defer client.close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()

	for {
		select {
		case data := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return
			}
		case <-client.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(feedWriteWait))
			return
		case <-r.Context().Done():
			return
		}
	}
}
