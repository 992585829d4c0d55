package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mobile-next/handsfree/actions"
	"github.com/mobile-next/handsfree/voice"
	"go.uber.org/zap"
)

const (
	// Parse error: Invalid JSON was received by the server
	ErrCodeParseError = -32700

	// Invalid Request: The JSON sent is not a valid Request object
	ErrCodeInvalidRequest = -32600

	// Method not found: The method does not exist / is not available
	ErrCodeMethodNotFound = -32601

	// Invalid params: Invalid method parameters
	ErrCodeInvalidParams = -32602

	// Internal error: Internal JSON-RPC error
	ErrCodeInternalError = -32603

	// Server error: the method failed
	ErrCodeServerError = -32000

	// Unauthorized: missing or wrong API token
	ErrCodeUnauthorized = -32001
)

// Server timeouts
const (
	ReadTimeout     = 10 * time.Second
	WriteTimeout    = 10 * time.Second
	IdleTimeout     = 120 * time.Second
	ShutdownTimeout = 5 * time.Second
)

var okResponse = map[string]interface{}{"status": "ok"}

type JSONRPCRequest struct {
	// these fields are all omitempty, so we can report back to client if they are missing
	JSONRPC string          `json:"jsonrpc,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      interface{}     `json:"id,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC response
type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Options configure the API server.
type Options struct {
	Addr string
	CORS bool
	// Token, when set, must accompany every request.
	Token string
	// FeedMoveRate caps MOVE envelopes per second on the live feed.
	FeedMoveRate float64
	// DedupeSize is the number of recent request IDs remembered.
	DedupeSize int
}

// StatusFunc reports engine state for the "status" method.
type StatusFunc func() interface{}

// Server exposes the action bus over JSON-RPC and streams it on /ws/feed.
type Server struct {
	opts    Options
	bus     *actions.Bus
	grammar *voice.Grammar
	status  StatusFunc
	feed    *Feed
	logger  *zap.Logger

	dedupeMu sync.Mutex
	seen     *lru.Cache[string, []string]
}

type Option func(*Server)

// WithGrammar enables the voice.utterance method.
func WithGrammar(g *voice.Grammar) Option {
	return func(s *Server) { s.grammar = g }
}

func WithStatus(fn StatusFunc) Option {
	return func(s *Server) { s.status = fn }
}

// New creates a server that puts remote actions on bus and mirrors every
// envelope on bus to feed subscribers.
func New(opts Options, bus *actions.Bus, logger *zap.Logger, options ...Option) (*Server, error) {
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	seen, err := lru.New[string, []string](opts.DedupeSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create request cache: %w", err)
	}

	s := &Server{
		opts:   opts,
		bus:    bus,
		seen:   seen,
		logger: logger.Named("server"),
	}
	s.feed = NewFeed(opts.FeedMoveRate, s.logger)
	for _, opt := range options {
		opt(s)
	}
	bus.Observe(s.feed.PublishEnvelope)
	return s, nil
}

// Feed returns the live feed hub.
func (s *Server) Feed() *Feed {
	return s.feed
}

// corsMiddleware handles CORS preflight requests and adds CORS headers to responses.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", sendBanner)
	mux.HandleFunc("/rpc", s.requireToken(s.handleJSONRPC))
	mux.HandleFunc("/ws", s.requireToken(s.handleWebSocket))
	mux.HandleFunc("/ws/feed", s.requireToken(s.handleFeed))

	var handler http.Handler = mux
	if s.opts.CORS {
		handler = corsMiddleware(mux)
	}
	return handler
}

// NormalizeAddr turns a bare port into ":port".
func NormalizeAddr(addr string) (string, error) {
	if strings.Contains(addr, ":") {
		return addr, nil
	}
	port, err := strconv.Atoi(addr)
	if err != nil {
		return "", fmt.Errorf("invalid port: %v", err)
	}
	return fmt.Sprintf(":%d", port), nil
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr, err := NormalizeAddr(s.opts.Addr)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(listener)
	}()
	s.logger.Info("server listening", zap.String("addr", "http://"+listener.Addr().String()))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	s.feed.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-errc
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONRPCError(w, nil, ErrCodeParseError, "Parse error", "expecting jsonrpc payload")
		return
	}

	if code, data := validateRequest(req); code != 0 {
		sendJSONRPCError(w, req.ID, code, "Invalid Request", data)
		return
	}

	s.logger.Debug("rpc request",
		zap.Any("id", req.ID),
		zap.String("method", req.Method),
		zap.ByteString("params", req.Params))

	result, code, err := s.call(req.Method, req.Params)
	if err != nil {
		s.logger.Warn("rpc failed", zap.String("method", req.Method), zap.Error(err))
		sendJSONRPCError(w, req.ID, code, errorMessage(code), err.Error())
		return
	}

	sendJSONRPCResponse(w, req.ID, result)
}

func validateRequest(req JSONRPCRequest) (int, string) {
	if req.JSONRPC != "2.0" {
		return ErrCodeInvalidRequest, "'jsonrpc' must be '2.0'"
	}
	if req.ID == nil {
		return ErrCodeInvalidRequest, "'id' field is required"
	}
	if req.Method == "" {
		return ErrCodeInvalidRequest, "'method' is required"
	}
	return 0, ""
}

func errorMessage(code int) string {
	switch code {
	case ErrCodeMethodNotFound:
		return "Method not found"
	case ErrCodeInvalidParams:
		return "Invalid params"
	case ErrCodeUnauthorized:
		return "Unauthorized"
	}
	return "Server error"
}

func sendJSONRPCResponse(w http.ResponseWriter, id interface{}, result interface{}) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func sendJSONRPCError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
		ID: id,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func sendBanner(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(okResponse)
}
