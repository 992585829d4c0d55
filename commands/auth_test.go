package commands

import (
	"errors"
	"testing"

	"github.com/mobile-next/handsfree/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryTokens is a TokenStore backed by a variable.
func memoryTokens(token *string) TokenStore {
	return TokenStore{
		Load: func() (string, error) {
			if *token == "" {
				return "", server.ErrNoToken
			}
			return *token, nil
		},
		Save: func(t string) error {
			if t == "" {
				return errors.New("token must not be empty")
			}
			*token = t
			return nil
		},
		Delete: func() error {
			if *token == "" {
				return server.ErrNoToken
			}
			*token = ""
			return nil
		},
	}
}

func TestTokenCommands_Lifecycle(t *testing.T) {
	var stored string
	store := memoryTokens(&stored)

	resp := TokenShowCommand(store)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, server.ErrNoToken.Error(), resp.Error)

	resp = TokenGenerateCommand(store)
	require.Equal(t, "ok", resp.Status, resp.Error)
	generated := resp.Data.(map[string]interface{})["token"].(string)
	assert.Len(t, generated, 64)
	assert.Equal(t, generated, stored)

	resp = TokenSetCommand(store, "s3cret")
	require.Equal(t, "ok", resp.Status)
	resp = TokenShowCommand(store)
	require.Equal(t, "ok", resp.Status)
	assert.Equal(t, "s3cret", resp.Data.(map[string]interface{})["token"])

	resp = TokenClearCommand(store)
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, stored)

	// clearing twice is fine
	resp = TokenClearCommand(store)
	assert.Equal(t, "ok", resp.Status)
}

func TestTokenSetCommand_Empty(t *testing.T) {
	var stored string
	resp := TokenSetCommand(memoryTokens(&stored), "")
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "token must not be empty", resp.Error)
}

func TestTokenClearCommand_StoreError(t *testing.T) {
	store := TokenStore{Delete: func() error { return errors.New("keyring locked") }}
	resp := TokenClearCommand(store)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "failed to clear token: keyring locked", resp.Error)
}
