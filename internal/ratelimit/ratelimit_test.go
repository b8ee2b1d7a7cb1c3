package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDisabled(t *testing.T) {
	assert.Nil(t, New(0))
	assert.Nil(t, New(-3))

	var l *Limiter
	require.NoError(t, l.Wait(context.Background()))
}

func TestWaitBurstThenBlocks(t *testing.T) {
	l := New(2)
	ctx := context.Background()

	// Burst of two is immediate.
	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// Third token takes roughly half a second to accrue.
	require.NoError(t, l.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(0.01)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
