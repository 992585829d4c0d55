package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "handsfree"
	keyringUser    = "api-token"
)

// ErrNoToken is returned when no API token is stored.
var ErrNoToken = errors.New("no API token stored")

// LoadToken reads the API token from the OS keyring.
func LoadToken() (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return token, nil
}

// SaveToken stores token in the OS keyring.
func SaveToken(token string) error {
	if token == "" {
		return errors.New("token must not be empty")
	}
	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

// DeleteToken removes the stored token.
func DeleteToken() error {
	err := keyring.Delete(keyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNoToken
	}
	return err
}

// GenerateToken returns a random 32-byte hex token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// requestToken extracts a bearer token, falling back to the "token" query
// parameter because browsers cannot set headers on websocket upgrades.
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	if s.opts.Token == "" {
		return next
	}
	want := []byte(s.opts.Token)
	return func(w http.ResponseWriter, r *http.Request) {
		if subtle.ConstantTimeCompare([]byte(requestToken(r)), want) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(JSONRPCResponse{
				JSONRPC: "2.0",
				Error: map[string]interface{}{
					"code":    ErrCodeUnauthorized,
					"message": "Unauthorized",
					"data":    "missing or invalid API token",
				},
			})
			return
		}
		next(w, r)
	}
}
