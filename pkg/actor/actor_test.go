package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
)

func TestFromContext_DefaultsToOperator(t *testing.T) {
	id := FromContext(context.Background())
	assert.Equal(t, DefaultOperator, id)
	assert.False(t, id.System)
}

func TestWithIdentity_RoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), SystemIdentity)
	id := FromContext(ctx)
	assert.Equal(t, "system", id.ID)
	assert.True(t, id.System)
}

func TestTokenResolver_GenerateAndResolve(t *testing.T) {
	r := NewTokenResolver("test-secret")

	token, err := r.Generate(Identity{ID: "usr-1", DisplayName: "Dana"}, time.Hour)
	require.NoError(t, err)

	id, err := r.Resolve("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "usr-1", id.ID)
	assert.Equal(t, "Dana", id.DisplayName)
	assert.False(t, id.System)
}

func TestTokenResolver_MissingHeaderIsOperator(t *testing.T) {
	r := NewTokenResolver("test-secret")

	id, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultOperator, id)
}

func TestTokenResolver_RejectsBadTokens(t *testing.T) {
	r := NewTokenResolver("test-secret")

	tests := []struct {
		name   string
		header string
	}{
		{"garbage token", "Bearer not-a-jwt"},
		{"no bearer prefix", "Basic abc123"},
		{"empty bearer", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.header)
			assert.ErrorIs(t, err, cverrors.ErrUnauthorized)
		})
	}
}

func TestTokenResolver_WrongSecret(t *testing.T) {
	issuer := NewTokenResolver("secret-a")
	verifier := NewTokenResolver("secret-b")

	token, err := issuer.Generate(Identity{ID: "usr-1"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Resolve("Bearer " + token)
	assert.ErrorIs(t, err, cverrors.ErrUnauthorized)
}

func TestTokenResolver_ExpiredToken(t *testing.T) {
	r := NewTokenResolver("test-secret")

	token, err := r.Generate(Identity{ID: "usr-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = r.Resolve("Bearer " + token)
	assert.ErrorIs(t, err, cverrors.ErrUnauthorized)
}

func TestTokenResolver_DisabledSecret(t *testing.T) {
	r := NewTokenResolver("")

	// Without a secret nothing can be issued or verified, but anonymous
	// callers still resolve.
	_, err := r.Generate(Identity{ID: "usr-1"}, time.Hour)
	require.Error(t, err)

	id, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, DefaultOperator, id)

	_, err = r.Resolve("Bearer whatever")
	assert.ErrorIs(t, err, cverrors.ErrUnauthorized)
}
