package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_IdleRefillThenConsume(t *testing.T) {
	b := NewTokenBucket(10, 2) // capacity 10, 2 tokens/sec
	clock := b.lastRefillTime
	b.now = func() time.Time { return clock }

	// Drain the bucket.
	assert.True(t, b.TryConsume(10))
	assert.False(t, b.TryConsume(1))

	// Idle for 3 seconds -> 6 tokens refilled.
	clock = clock.Add(3 * time.Second)
	assert.True(t, b.TryConsume(6))
	assert.False(t, b.TryConsume(1))
}

func TestTokenBucket_CapAtCapacity(t *testing.T) {
	clock := time.Now()
	b := NewTokenBucket(5, 100)
	b.now = func() time.Time { return clock }
	clock = clock.Add(10 * time.Second) // would refill far past capacity
	assert.True(t, b.TryConsume(5))
	assert.False(t, b.TryConsume(1))
}

func TestTokenBucket_Reset(t *testing.T) {
	b := NewTokenBucket(3, 1)
	b.TryConsume(3)
	b.Reset()
	assert.True(t, b.TryConsume(3))
}

func TestClientLimiter_ConcurrentScanSlotCeiling(t *testing.T) {
	l := NewClientLimiter()
	for i := 0; i < DefaultMaxConcurrentScan; i++ {
		assert.True(t, l.AcquireScanSlot("client-a"))
	}
	assert.False(t, l.AcquireScanSlot("client-a"))

	l.ReleaseScanSlot("client-a")
	assert.True(t, l.AcquireScanSlot("client-a"))
}

func TestClientLimiter_PerClientIsolation(t *testing.T) {
	l := NewClientLimiter()
	for i := 0; i < DefaultMaxConcurrentScan; i++ {
		l.AcquireScanSlot("client-a")
	}
	// client-b has its own ceiling, unaffected by client-a's usage.
	assert.True(t, l.AcquireScanSlot("client-b"))
}
