package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cverrors "github.com/conclave-hq/conclave/pkg/errors"
)

func TestMemoryLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter(time.Hour, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(ctx, "actor-1"), "attempt %d", i+1)
	}

	err := l.Allow(ctx, "actor-1")
	assert.ErrorIs(t, err, cverrors.ErrQuotaExceeded)
}

func TestMemoryLimiter_RejectionDoesNotConsume(t *testing.T) {
	l := NewMemoryLimiter(time.Hour, 1)
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "actor-1"))
	assert.ErrorIs(t, l.Allow(ctx, "actor-1"), cverrors.ErrQuotaExceeded)

	remaining, err := l.Remaining(ctx, "actor-1")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestMemoryLimiter_ActorsAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(time.Hour, 1)
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "actor-1"))
	require.NoError(t, l.Allow(ctx, "actor-2"))
	assert.ErrorIs(t, l.Allow(ctx, "actor-1"), cverrors.ErrQuotaExceeded)
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	l := NewMemoryLimiter(time.Hour, 1)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "actor-1"))
	assert.ErrorIs(t, l.Allow(ctx, "actor-1"), cverrors.ErrQuotaExceeded)

	// Just before expiry: still blocked. The window is fixed, not sliding.
	current = current.Add(59 * time.Minute)
	assert.ErrorIs(t, l.Allow(ctx, "actor-1"), cverrors.ErrQuotaExceeded)

	current = current.Add(2 * time.Minute)
	require.NoError(t, l.Allow(ctx, "actor-1"))
}

func TestMemoryLimiter_Remaining(t *testing.T) {
	l := NewMemoryLimiter(time.Hour, 5)
	ctx := context.Background()

	remaining, err := l.Remaining(ctx, "fresh-actor")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)

	require.NoError(t, l.Allow(ctx, "fresh-actor"))
	require.NoError(t, l.Allow(ctx, "fresh-actor"))

	remaining, err = l.Remaining(ctx, "fresh-actor")
	require.NoError(t, err)
	assert.Equal(t, 3, remaining)
}
