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

package correlation

import (
	"sync"
	"time"

	"netwatch/pkg/netwatch/event"
)

// patternKey identifies a (event_type, interface) bucket.
type patternKey struct {
	eventType uint32
	iface     string
}

type patternBucket struct {
	firstSeen  time.Time
	lastSeen   time.Time
	count      uint64
	alertFired bool
}

// PatternDetector keeps per (event_type, interface) frequency statistics
// and emits when a bucket's event count reaches MinFrequency within
// WindowSec.
// The alert-triggered flag resets whenever the bucket itself expires,
// so a quiet period re-arms detection for that (event_type, interface)
// pair (§4.K).
type PatternDetector struct {
	now       func() time.Time
	windowSec int
	minFreq   uint64

	mu      sync.Mutex
	buckets map[patternKey]*patternBucket
}

// NewPatternDetector returns a detector that fires once a bucket
// accumulates minFrequency events within windowSec.
func NewPatternDetector(windowSec int, minFrequency uint64) *PatternDetector {
	return NewPatternDetectorWithClock(windowSec, minFrequency, time.Now)
}

// NewPatternDetectorWithClock is NewPatternDetector with an injectable
// clock for deterministic tests.
func NewPatternDetectorWithClock(windowSec int, minFrequency uint64, now func() time.Time) *PatternDetector {
	return &PatternDetector{
		now:       now,
		windowSec: windowSec,
		minFreq:   minFrequency,
		buckets:   make(map[patternKey]*patternBucket),
	}
}

// PatternMatch describes a (event_type, interface) bucket that has
// crossed the frequency threshold.
type PatternMatch struct {
	EventType       uint32
	Interface       string
	Count           uint64
	EventsPerSecond float64
	FirstSeen       time.Time
	LastSeen        time.Time
}

// Observe records e and returns a PatternMatch if e's bucket just
// crossed the frequency threshold for the first time since its last
// expiry.
func (d *PatternDetector) Observe(e *event.Event) (PatternMatch, bool) {
	key := patternKey{eventType: e.EventType, iface: e.Interface}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buckets[key]
	if !ok || now.Sub(b.lastSeen) > time.Duration(d.windowSec)*time.Second {
		b = &patternBucket{firstSeen: now}
		d.buckets[key] = b
	}
	b.count++
	b.lastSeen = now

	elapsed := now.Sub(b.firstSeen).Seconds()
	if elapsed <= 0 {
		elapsed = 1
	}
	rate := float64(b.count) / elapsed

	if b.count >= d.minFreq && !b.alertFired {
		b.alertFired = true
		return PatternMatch{
			EventType:       key.eventType,
			Interface:       key.iface,
			Count:           b.count,
			EventsPerSecond: rate,
			FirstSeen:       b.firstSeen,
			LastSeen:        b.lastSeen,
		}, true
	}
	return PatternMatch{}, false
}
