// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeClock is a settable time source for limiter tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(t *testing.T, cfg RateLimiterConfig) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(cfg)
	rl.now = clock.Now
	t.Cleanup(rl.Close)
	return rl, clock
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{BurstCapacity: -5, SustainedRate: -1})
	assert.Equal(t, DefaultBurstCapacity, rl.burstCapacity)
	assert.Equal(t, DefaultSustainedRate, rl.sustainedRate)
	assert.Equal(t, DefaultCallerMaxAge, rl.callerMaxAge)

	rl2, _ := newTestLimiter(t, RateLimiterConfig{SustainedRate: 0.01})
	assert.Equal(t, MinSustainedRate, rl2.sustainedRate)
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("allows a burst then limits", func(t *testing.T) {
		rl, _ := newTestLimiter(t, RateLimiterConfig{BurstCapacity: 3, SustainedRate: 1})

		for range 3 {
			allowed, cooldown := rl.Allow("alice")
			assert.True(t, allowed)
			assert.Zero(t, cooldown)
		}

		allowed, cooldown := rl.Allow("alice")
		assert.False(t, allowed)
		assert.Equal(t, int64(1000), cooldown)
	})

	t.Run("refills at the sustained rate", func(t *testing.T) {
		rl, clock := newTestLimiter(t, RateLimiterConfig{BurstCapacity: 1, SustainedRate: 2})

		allowed, _ := rl.Allow("alice")
		require.True(t, allowed)
		allowed, cooldown := rl.Allow("alice")
		require.False(t, allowed)
		assert.Equal(t, int64(500), cooldown)

		clock.Advance(500 * time.Millisecond)
		allowed, _ = rl.Allow("alice")
		assert.True(t, allowed)
	})

	t.Run("refill never exceeds burst capacity", func(t *testing.T) {
		rl, clock := newTestLimiter(t, RateLimiterConfig{BurstCapacity: 2, SustainedRate: 1})

		clock.Advance(time.Hour)
		for range 2 {
			allowed, _ := rl.Allow("alice")
			assert.True(t, allowed)
		}
		allowed, _ := rl.Allow("alice")
		assert.False(t, allowed)
	})

	t.Run("callers are independent", func(t *testing.T) {
		rl, _ := newTestLimiter(t, RateLimiterConfig{BurstCapacity: 1, SustainedRate: 1})

		allowed, _ := rl.Allow("alice")
		assert.True(t, allowed)
		allowed, _ = rl.Allow("bob")
		assert.True(t, allowed)
		allowed, _ = rl.Allow("alice")
		assert.False(t, allowed)
		assert.Equal(t, 2, rl.CallerCount())
	})
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl, clock := newTestLimiter(t, RateLimiterConfig{})

	rl.Allow("stale")
	clock.Advance(2 * time.Hour)
	rl.Allow("fresh")

	rl.Cleanup(time.Hour)
	assert.Equal(t, 1, rl.CallerCount())
}

func TestRateLimiter_Gauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	rl := NewRateLimiterWithRegistry(RateLimiterConfig{}, reg)
	defer rl.Close()

	rl.Allow("alice")
	rl.Allow("bob")

	count, err := testutil.GatherAndCount(reg, "troupe_ratelimiter_callers")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.InDelta(t, 2.0, testutil.ToFloat64(rl.callerGauge), 0)
}

func TestRateLimiter_CloseStopsGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rl := NewRateLimiter(RateLimiterConfig{CleanupInterval: time.Millisecond})
	time.Sleep(5 * time.Millisecond)
	rl.Close()
	rl.Close()
}

func TestRateLimiter_ConcurrentAllow(t *testing.T) {
	rl, _ := newTestLimiter(t, RateLimiterConfig{BurstCapacity: 50, SustainedRate: MinSustainedRate})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := rl.Allow("alice"); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, granted)
}
