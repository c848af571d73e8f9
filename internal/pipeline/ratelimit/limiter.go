// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit implements a token-bucket rate limiter, both as a
// single global bucket and as a map keyed by an arbitrary comparable key
// (e.g. event type), with lazily-created per-key buckets.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a single token bucket. tokens <= burst. Writes are
// serialized by mu; reads of counters use plain fields guarded by the
// same mutex since the hot path already takes it for Allow.
type Limiter struct {
	mu sync.Mutex

	rate  float64 // tokens added per second
	burst float64

	tokens     float64
	lastRefill time.Time

	allowed int64
	denied  int64

	now func() time.Time
}

// New creates a token bucket that refills at rate tokens/sec up to burst.
// The bucket starts full.
func New(rate, burst float64) *Limiter {
	return NewWithClock(rate, burst, time.Now)
}

// NewWithClock is New with an injectable clock, for deterministic tests.
func NewWithClock(rate, burst float64, now func() time.Time) *Limiter {
	if burst < 0 {
		burst = 0
	}
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: now(),
		now:        now,
	}
}

// Allow attempts to consume n tokens. It refills based on elapsed time,
// then admits iff tokens >= n.
func (l *Limiter) Allow(n float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed > 0 {
		l.tokens += elapsed * l.rate
		if l.tokens > l.burst {
			l.tokens = l.burst
		}
		l.lastRefill = now
	}

	if l.tokens >= n {
		l.tokens -= n
		l.allowed++
		return true
	}
	l.denied++
	return false
}

// Counts returns (allowed, denied) totals since construction.
func (l *Limiter) Counts() (allowed, denied int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowed, l.denied
}

// Map is a concurrent set of Limiters keyed by event type. Missing keys
// fall back to a default bucket shape (same rate/burst as the map's
// configured defaults) created lazily on first use.
type Map struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu       sync.Mutex
	limiters map[uint32]*Limiter
}

// NewMap creates a keyed limiter map whose lazily-created buckets all
// share the given rate/burst.
func NewMap(rate, burst float64) *Map {
	return NewMapWithClock(rate, burst, time.Now)
}

// NewMapWithClock is NewMap with an injectable clock.
func NewMapWithClock(rate, burst float64, now func() time.Time) *Map {
	return &Map{
		rate:     rate,
		burst:    burst,
		now:      now,
		limiters: make(map[uint32]*Limiter),
	}
}

// Allow consumes n tokens from the bucket for key, creating it if absent.
func (m *Map) Allow(key uint32, n float64) bool {
	return m.bucketFor(key).Allow(n)
}

func (m *Map) bucketFor(key uint32) *Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[key]
	if !ok {
		l = NewWithClock(m.rate, m.burst, m.now)
		m.limiters[key] = l
	}
	return l
}

// Len returns the number of distinct keys with a lazily-created bucket.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}
