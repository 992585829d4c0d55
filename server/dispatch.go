package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mobile-next/handsfree/actions"
	"go.uber.org/zap"
)

// HandlerFunc is the signature for JSON-RPC method handlers
type HandlerFunc func(params json.RawMessage) (interface{}, error)

var (
	errMethodNotFound = errors.New("method not found")
	errInvalidParams  = errors.New("invalid params")
)

// PutParams carries one or more actions. RequestID makes retries idempotent:
// a repeated ID is answered from cache without queuing the actions again.
type PutParams struct {
	RequestID string            `json:"request_id,omitempty"`
	Action    json.RawMessage   `json:"action,omitempty"`
	Actions   []json.RawMessage `json:"actions,omitempty"`
}

type PutResult struct {
	IDs       []string `json:"ids"`
	Duplicate bool     `json:"duplicate,omitempty"`
}

type UtteranceParams struct {
	Text string `json:"text"`
}

type UtteranceResult struct {
	Rule    string   `json:"rule"`
	Actions []string `json:"actions"`
	IDs     []string `json:"ids"`
}

// methods maps method names to handlers. Both /rpc and /ws use it.
func (s *Server) methods() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"actions.put":     s.handleActionsPut,
		"voice.utterance": s.handleUtterance,
		"status":          s.handleStatus,
		"server.shutdown": s.handleShutdown,
	}
}

// Execute dispatches a method call using the registry.
func (s *Server) Execute(method string, params json.RawMessage) (interface{}, error) {
	handler, exists := s.methods()[method]
	if !exists {
		return nil, fmt.Errorf("%w: %s", errMethodNotFound, method)
	}
	return handler(params)
}

// call runs a method and maps its error to a JSON-RPC code.
func (s *Server) call(method string, params json.RawMessage) (interface{}, int, error) {
	result, err := s.Execute(method, params)
	switch {
	case err == nil:
		return result, 0, nil
	case errors.Is(err, errMethodNotFound):
		return nil, ErrCodeMethodNotFound, err
	case errors.Is(err, errInvalidParams):
		return nil, ErrCodeInvalidParams, err
	}
	return nil, ErrCodeServerError, err
}

func decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		return fmt.Errorf("%w: params are required", errInvalidParams)
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

func (s *Server) handleActionsPut(params json.RawMessage) (interface{}, error) {
	var p PutParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	raw := p.Actions
	if len(p.Action) > 0 {
		raw = append([]json.RawMessage{p.Action}, raw...)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: 'action' or 'actions' is required", errInvalidParams)
	}

	// decode everything first so a bad entry queues nothing
	list := make([]actions.Action, 0, len(raw))
	for i, r := range raw {
		a, err := actions.Unmarshal(r)
		if err != nil {
			return nil, fmt.Errorf("%w: action %d: %v", errInvalidParams, i, err)
		}
		list = append(list, a)
	}

	if p.RequestID == "" {
		return PutResult{IDs: s.put(actions.SourceRemote, list)}, nil
	}

	// the lookup and the insert must be atomic or concurrent retries both queue
	s.dedupeMu.Lock()
	defer s.dedupeMu.Unlock()
	if ids, ok := s.seen.Get(p.RequestID); ok {
		s.logger.Debug("duplicate request", zap.String("request_id", p.RequestID))
		return PutResult{IDs: ids, Duplicate: true}, nil
	}
	ids := s.put(actions.SourceRemote, list)
	s.seen.Add(p.RequestID, ids)
	return PutResult{IDs: ids}, nil
}

func (s *Server) put(source string, list []actions.Action) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		env := actions.NewEnvelope(source, a)
		s.bus.Put(env)
		ids = append(ids, env.ID)
	}
	return ids
}

func (s *Server) handleUtterance(params json.RawMessage) (interface{}, error) {
	if s.grammar == nil {
		return nil, errors.New("voice grammar not available")
	}
	var p UtteranceParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	list := s.grammar.Match(p.Text)
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = actions.Describe(a)
	}
	return UtteranceResult{
		Rule:    s.grammar.Rule(p.Text),
		Actions: names,
		IDs:     s.put(actions.SourceVoice, list),
	}, nil
}

func (s *Server) handleStatus(params json.RawMessage) (interface{}, error) {
	result := map[string]interface{}{
		"queued":       s.bus.Len(),
		"feed_clients": s.feed.Clients(),
	}
	if s.status != nil {
		result["engine"] = s.status()
	}
	return result, nil
}

// handleShutdown queues Quit; the engine stops and cancels the server.
func (s *Server) handleShutdown(params json.RawMessage) (interface{}, error) {
	s.logger.Info("shutdown requested")
	s.put(actions.SourceRemote, []actions.Action{actions.Quit{}})
	return okResponse, nil
}
