package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/sentinelerr"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.FailureThreshold = 3
	cfg.CooldownPeriod = 50 * time.Millisecond
	b := New(cfg)

	failing := func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	}

	for i := 0; i < 3; i++ {
		_, err := b.Execute(context.Background(), failing)
		require.Error(t, err)
	}

	assert.Equal(t, Open, b.State())

	_, err := b.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "should not run", nil
	})
	require.Error(t, err)
	assert.True(t, sentinelerr.Is(err, sentinelerr.CircuitBlocked))
}

func TestCircuitBreaker_HalfOpenRecloses(t *testing.T) {
	cfg := DefaultConfig("test2")
	cfg.FailureThreshold = 1
	cfg.CooldownPeriod = 20 * time.Millisecond
	b := New(cfg)

	_, _ = b.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	assert.Equal(t, Open, b.State())

	time.Sleep(30 * time.Millisecond)

	result, err := b.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, Closed, b.State())
}
