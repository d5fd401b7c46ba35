package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinelOfItsKind(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", Validation("create budget", map[string]string{"limit": "must be >= 0"}), ErrValidation},
		{"conflict", FromStatus("create budget", 409, "exists"), ErrConflict},
		{"not found", FromStatus("get budget", 404, "missing"), ErrNotFound},
		{"expired session", FromStatus("get /categories", 401, "Not authenticated"), ErrAuth},
		{"network", Network("list", errors.New("connection refused")), ErrNetwork},
		{"auth", Auth("login", errors.New("bad")), ErrAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.NotErrorIs(t, wrapped, ErrCanceled)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "create: amount: must be > 0; title: required",
		Validation("create", map[string]string{"title": "required", "amount": "must be > 0"}).Error())
	assert.Equal(t, "delete: 500 Internal Server Error",
		FromStatus("delete", 500, "500 Internal Server Error").Error())
	assert.Equal(t, "list: dial tcp: refused",
		Network("list", errors.New("dial tcp: refused")).Error())
}

func TestAuthKeepsServerMessage(t *testing.T) {
	inner := FromStatus("post /auth/login", 401, "Invalid credentials")
	err := Auth("login", inner)

	require.Equal(t, KindAuth, err.Kind)
	assert.Equal(t, "login: Invalid credentials", err.Error())
	assert.Equal(t, 401, err.Status)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNetwork, KindOf(fmt.Errorf("x: %w", Network("op", errors.New("eof")))))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Nil(t, Wrapf(nil, "noop"))
}
