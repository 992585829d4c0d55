// Package sidecar connects to the external sensing processes (landmark
// estimator, classifier, speech recognizer) that stream JSON over websockets
// or newline-delimited files.
package sidecar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrClosed is returned by reads after Close.
var ErrClosed = errors.New("sidecar connection closed")

// Options configure a websocket sidecar client.
type Options struct {
	URL string
	// MaxElapsed bounds how long connection attempts are retried.
	MaxElapsed time.Duration
	// Reconnect enables transparent redial when a read fails.
	Reconnect bool
	Dialer    *websocket.Dialer
	Logger    *zap.Logger
}

// Client is a reconnecting websocket client.
type Client struct {
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  bool
	writeMu sync.Mutex
}

// NewClient creates a client; no connection is made until Connect.
func NewClient(opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.MaxElapsed <= 0 {
		opts.MaxElapsed = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{opts: opts, logger: logger.With(zap.String("url", opts.URL))}
}

// Connect dials the sidecar, retrying with exponential backoff until
// MaxElapsed passes or ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = c.opts.MaxElapsed

	operation := func() error {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return backoff.Permanent(ErrClosed)
		}

		conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Debug("sidecar dial failed", zap.Error(err))
			return err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			_ = conn.Close()
			return backoff.Permanent(ErrClosed)
		}
		c.conn = conn
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.opts.URL, err)
	}
	c.logger.Info("sidecar connected")
	return nil
}

// Read returns the next text or binary message payload.
func (c *Client) Read(ctx context.Context) ([]byte, error) {
	for {
		c.mu.Lock()
		conn, closed := c.conn, c.closed
		c.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		if conn == nil {
			return nil, fmt.Errorf("sidecar %s is not connected", c.opts.URL)
		}

		_, data, err := conn.ReadMessage()
		if err == nil {
			return data, nil
		}

		c.mu.Lock()
		closed = c.closed
		c.mu.Unlock()
		if closed || ctx.Err() != nil {
			return nil, ErrClosed
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) || !c.opts.Reconnect {
			return nil, fmt.Errorf("sidecar read failed: %w", err)
		}

		c.logger.Warn("sidecar connection lost, reconnecting", zap.Error(err))
		_ = conn.Close()
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}
}

// WriteJSON sends v as a text message.
func (c *Client) WriteJSON(v interface{}) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(v)
}

// WriteBinary sends data as a binary message.
func (c *Client) WriteBinary(data []byte) error {
	conn, err := c.current()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *Client) current() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.conn == nil {
		return nil, fmt.Errorf("sidecar %s is not connected", c.opts.URL)
	}
	return c.conn, nil
}

// Close terminates the connection. It is safe to call more than once and
// unblocks a pending Read.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
