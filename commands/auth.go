package commands

import (
	"errors"
	"fmt"

	"github.com/mobile-next/handsfree/server"
)

// TokenStore is the API token storage, the OS keyring in production.
type TokenStore struct {
	Load   func() (string, error)
	Save   func(string) error
	Delete func() error
}

// KeyringTokens stores the token in the OS keyring.
var KeyringTokens = TokenStore{
	Load:   server.LoadToken,
	Save:   server.SaveToken,
	Delete: server.DeleteToken,
}

// TokenGenerateCommand creates and stores a new random API token.
func TokenGenerateCommand(store TokenStore) *CommandResponse {
	token, err := server.GenerateToken()
	if err != nil {
		return NewErrorResponse(err)
	}
	if err := store.Save(token); err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(map[string]interface{}{
		"token":   token,
		"message": "API token generated",
	})
}

// TokenSetCommand stores token as the API token.
func TokenSetCommand(store TokenStore, token string) *CommandResponse {
	if err := store.Save(token); err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(map[string]interface{}{"message": "API token stored"})
}

// TokenShowCommand prints the stored API token.
func TokenShowCommand(store TokenStore) *CommandResponse {
	token, err := store.Load()
	if err != nil {
		return NewErrorResponse(err)
	}
	return NewSuccessResponse(map[string]interface{}{"token": token})
}

// TokenClearCommand removes the API token; clearing a missing token is not
// an error.
func TokenClearCommand(store TokenStore) *CommandResponse {
	err := store.Delete()
	if err != nil && !errors.Is(err, server.ErrNoToken) {
		return NewErrorResponse(fmt.Errorf("failed to clear token: %w", err))
	}
	return NewSuccessResponse(map[string]interface{}{"message": "API token cleared"})
}
