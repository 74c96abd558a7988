// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package command

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default rate limiting values.
const (
	// DefaultBurstCapacity is the number of dispatches a caller may make in
	// a burst before limiting kicks in.
	DefaultBurstCapacity = 20

	// DefaultSustainedRate is the token refill rate in dispatches per second.
	DefaultSustainedRate = 10.0

	MinBurstCapacity = 1
	MinSustainedRate = 0.1

	// DefaultCleanupInterval is how often idle callers are swept.
	DefaultCleanupInterval = 5 * time.Minute

	// DefaultCallerMaxAge is how long a caller may stay idle before its
	// bucket is dropped.
	DefaultCallerMaxAge = time.Hour
)

// RateLimiterConfig configures the rate limiter. Zero values select defaults.
type RateLimiterConfig struct {
	BurstCapacity   int
	SustainedRate   float64
	CleanupInterval time.Duration
	CallerMaxAge    time.Duration
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter is a per-caller token bucket. It is safe for concurrent use.
//
// A background goroutine drops idle callers; call Close to stop it.
type RateLimiter struct {
	mu            sync.Mutex
	callers       map[string]*bucket
	burstCapacity int
	sustainedRate float64
	callerMaxAge  time.Duration
	now           func() time.Time

	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	callerGauge prometheus.Gauge
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return newRateLimiter(cfg, nil)
}

// NewRateLimiterWithRegistry is like NewRateLimiter and also registers a
// tracked-caller gauge with reg.
func NewRateLimiterWithRegistry(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	return newRateLimiter(cfg, reg)
}

func newRateLimiter(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	burstCapacity := cfg.BurstCapacity
	if burstCapacity <= 0 {
		burstCapacity = DefaultBurstCapacity
	}
	burstCapacity = max(burstCapacity, MinBurstCapacity)

	sustainedRate := cfg.SustainedRate
	if sustainedRate <= 0 {
		sustainedRate = DefaultSustainedRate
	}
	sustainedRate = max(sustainedRate, MinSustainedRate)

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	callerMaxAge := cfg.CallerMaxAge
	if callerMaxAge <= 0 {
		callerMaxAge = DefaultCallerMaxAge
	}

	rl := &RateLimiter{
		callers:       make(map[string]*bucket),
		burstCapacity: burstCapacity,
		sustainedRate: sustainedRate,
		callerMaxAge:  callerMaxAge,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}

	if reg != nil {
		rl.callerGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "troupe_ratelimiter_callers",
			Help: "Current number of callers tracked by the rate limiter",
		})
		reg.MustRegister(rl.callerGauge)
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(cleanupInterval)

	return rl
}

// Allow consumes a token for caller. When none is available it returns
// false and the milliseconds until the next token.
func (rl *RateLimiter) Allow(caller string) (allowed bool, cooldownMs int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	b, exists := rl.callers[caller]
	if !exists {
		b = &bucket{tokens: float64(rl.burstCapacity), lastCheck: now}
		rl.callers[caller] = b
		rl.updateGauge()
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	b.tokens = min(b.tokens+elapsed*rl.sustainedRate, float64(rl.burstCapacity))
	b.lastCheck = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}

	deficit := 1.0 - b.tokens
	return false, int64(deficit / rl.sustainedRate * 1000)
}

// CallerCount returns the number of tracked callers.
func (rl *RateLimiter) CallerCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.callers)
}

// Cleanup drops callers idle for longer than maxAge.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := rl.now().Add(-maxAge)
	for caller, b := range rl.callers {
		if b.lastCheck.Before(threshold) {
			delete(rl.callers, caller)
		}
	}
	rl.updateGauge()
}

// updateGauge must be called with mu held.
func (rl *RateLimiter) updateGauge() {
	if rl.callerGauge != nil {
		rl.callerGauge.Set(float64(len(rl.callers)))
	}
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.Cleanup(rl.callerMaxAge)
		}
	}
}

// Close stops the cleanup goroutine and waits for it to exit. It is safe to
// call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.stopChan) })
	rl.wg.Wait()
}
