package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyedRateLimiter_Allow(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		calls    int
		wantPass int
	}{
		{
			name:     "burst allows initial attempts",
			rps:      0.1,
			burst:    3,
			calls:    3,
			wantPass: 3,
		},
		{
			name:     "exceeding burst blocks",
			rps:      0.1,
			burst:    2,
			calls:    5,
			wantPass: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := New(tt.rps, tt.burst)
			defer rl.Stop()

			passed := 0
			for range tt.calls {
				if rl.Allow("mluukkai") {
					passed++
				}
			}

			assert.Equal(t, tt.wantPass, passed)
		})
	}
}

func TestKeyedRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := New(0.1, 1)
	defer rl.Stop()

	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))
	assert.True(t, rl.Allow("bob"))
	assert.Equal(t, 2, rl.Len())
}

func TestKeyedRateLimiter_Refill(t *testing.T) {
	rl := New(1, 1)
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("alice"))
	assert.False(t, rl.Allow("alice"))

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, rl.Allow("alice"))
}

func TestKeyedRateLimiter_EvictIdle(t *testing.T) {
	rl := New(1, 1, WithIdleTTL(time.Hour))
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("alice")
	now = now.Add(30 * time.Minute)
	rl.Allow("bob")

	now = now.Add(45 * time.Minute)
	rl.evictIdle()

	assert.Equal(t, 1, rl.Len())
	rl.mu.Lock()
	_, ok := rl.entries["bob"]
	rl.mu.Unlock()
	assert.True(t, ok)
}

func TestKeyedRateLimiter_Concurrent(t *testing.T) {
	rl := New(0.001, 5)
	defer rl.Stop()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		passed int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("shared") {
				mu.Lock()
				passed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, passed)
}

func TestKeyedRateLimiter_StopIdempotent(t *testing.T) {
	rl := New(1, 1)
	rl.Stop()
	assert.NoError(t, rl.Shutdown())
}
