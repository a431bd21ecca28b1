// Package ratelimit implements the token-bucket admission control used to
// protect Sentinel's scan and policy-query paths from a misbehaving or
// compromised renderer process flooding the local socket.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is a classic fractional-refill token bucket: capacity tokens
// max, refilling at rate tokens/sec, with TryConsume performing a lazy
// refill before checking admission.
type TokenBucket struct {
	mu             sync.Mutex
	capacity       float64
	refillPerSec   float64
	currentTokens  float64
	lastRefillTime time.Time
	now            func() time.Time
}

// NewTokenBucket creates a bucket starting full.
func NewTokenBucket(capacity, refillPerSec float64) *TokenBucket {
	return &TokenBucket{
		capacity:       capacity,
		refillPerSec:   refillPerSec,
		currentTokens:  capacity,
		lastRefillTime: time.Now(),
		now:            time.Now,
	}
}

func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.lastRefillTime).Seconds()
	if elapsed <= 0 {
		return
	}
	b.currentTokens += elapsed * b.refillPerSec
	if b.currentTokens > b.capacity {
		b.currentTokens = b.capacity
	}
	b.lastRefillTime = now
}

// TryConsume attempts to remove n tokens. It refills first, then either
// subtracts n and returns true, or leaves the bucket untouched and returns
// false.
func (b *TokenBucket) TryConsume(n float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if b.currentTokens >= n {
		b.currentTokens -= n
		return true
	}
	return false
}

// Reset refills the bucket to full capacity immediately.
func (b *TokenBucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentTokens = b.capacity
	b.lastRefillTime = b.now()
}

// TimeUntilNextToken returns how long until at least one token is
// available, or zero if one already is.
func (b *TokenBucket) TimeUntilNextToken() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	if b.currentTokens >= 1 {
		return 0
	}
	deficit := 1 - b.currentTokens
	seconds := deficit / b.refillPerSec
	return time.Duration(seconds * float64(time.Second))
}

// Defaults matching spec.md §4.3.
const (
	DefaultScanRatePerSec    = 10
	DefaultScanBurst         = 20
	DefaultPolicyRatePerSec  = 100
	DefaultPolicyBurst       = 200
	DefaultMaxConcurrentScan = 5
)

// ClientStats tracks per-client and global admission counters.
type ClientStats struct {
	TotalRequests  uint64
	AllowedCount   uint64
	DeniedCount    uint64
	CurrentSandbox int
}

// clientState holds one client's scan/policy buckets plus its in-flight
// scan count.
type clientState struct {
	scanLimiter       *TokenBucket
	policyLimiter     *TokenBucket
	concurrentScans   int
	stats             ClientStats
}

// ClientLimiter is the per-client-scoped rate limiter described in
// spec.md §4.3: every client-id gets its own {scan_limiter, policy_limiter,
// concurrent_count}, plus global rejection counters.
type ClientLimiter struct {
	mu                sync.Mutex
	clients           map[string]*clientState
	maxConcurrentScan int
	scanRate          float64
	scanBurst         float64
	policyRate        float64
	policyBurst       float64

	globalDenied uint64
}

// NewClientLimiter creates a limiter using spec.md's documented defaults.
func NewClientLimiter() *ClientLimiter {
	return &ClientLimiter{
		clients:           make(map[string]*clientState),
		maxConcurrentScan: DefaultMaxConcurrentScan,
		scanRate:          DefaultScanRatePerSec,
		scanBurst:         DefaultScanBurst,
		policyRate:        DefaultPolicyRatePerSec,
		policyBurst:       DefaultPolicyBurst,
	}
}

func (l *ClientLimiter) getOrCreate(clientID string) *clientState {
	st, ok := l.clients[clientID]
	if !ok {
		st = &clientState{
			scanLimiter:   NewTokenBucket(l.scanBurst, l.scanRate),
			policyLimiter: NewTokenBucket(l.policyBurst, l.policyRate),
		}
		l.clients[clientID] = st
	}
	return st
}

// AllowScan checks the scan-rate bucket for clientID. It does not reserve a
// concurrency slot; call AcquireScanSlot separately before scoring.
func (l *ClientLimiter) AllowScan(clientID string) bool {
	l.mu.Lock()
	st := l.getOrCreate(clientID)
	l.mu.Unlock()

	ok := st.scanLimiter.TryConsume(1)

	l.mu.Lock()
	defer l.mu.Unlock()
	st.stats.TotalRequests++
	if ok {
		st.stats.AllowedCount++
	} else {
		st.stats.DeniedCount++
		l.globalDenied++
	}
	return ok
}

// AllowPolicyQuery checks the policy-query-rate bucket for clientID.
func (l *ClientLimiter) AllowPolicyQuery(clientID string) bool {
	l.mu.Lock()
	st := l.getOrCreate(clientID)
	l.mu.Unlock()
	return st.policyLimiter.TryConsume(1)
}

// AcquireScanSlot reserves one of the client's concurrent-scan slots. It
// returns false without mutating state if the client is already at its
// concurrency ceiling.
func (l *ClientLimiter) AcquireScanSlot(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.getOrCreate(clientID)
	if st.concurrentScans >= l.maxConcurrentScan {
		return false
	}
	st.concurrentScans++
	st.stats.CurrentSandbox = st.concurrentScans
	return true
}

// ReleaseScanSlot returns a concurrency slot acquired via AcquireScanSlot.
// It must be called exactly once per successful acquisition, on completion,
// error, or cancellation.
func (l *ClientLimiter) ReleaseScanSlot(clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.clients[clientID]
	if !ok {
		return
	}
	if st.concurrentScans > 0 {
		st.concurrentScans--
	}
	st.stats.CurrentSandbox = st.concurrentScans
}

// Stats returns a snapshot of clientID's counters.
func (l *ClientLimiter) Stats(clientID string) ClientStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.clients[clientID]
	if !ok {
		return ClientStats{}
	}
	return st.stats
}

// GlobalDenied returns the total number of rejections across all clients.
func (l *ClientLimiter) GlobalDenied() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.globalDenied
}
