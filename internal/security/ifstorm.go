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

package security

import (
	"sync"
	"time"

	"netwatch/pkg/netwatch/event"
)

// InterfaceStormFinding reports an interface that produced more events
// than Threshold within a single window_sec bucket.
type InterfaceStormFinding struct {
	Interface string
	Count     int
}

type ifCounter struct {
	windowStart time.Time
	count       int
}

// InterfaceStormDetector keeps a per-interface event counter that resets
// every WindowSec, independent of any other interface's counter.
type InterfaceStormDetector struct {
	now       func() time.Time
	windowSec int
	threshold int

	mu       sync.Mutex
	counters map[string]*ifCounter
}

// NewInterfaceStormDetector returns a detector using the wall clock.
func NewInterfaceStormDetector(windowSec, threshold int) *InterfaceStormDetector {
	return NewInterfaceStormDetectorWithClock(windowSec, threshold, time.Now)
}

// NewInterfaceStormDetectorWithClock is NewInterfaceStormDetector with an
// injectable clock for deterministic tests.
func NewInterfaceStormDetectorWithClock(windowSec, threshold int, now func() time.Time) *InterfaceStormDetector {
	return &InterfaceStormDetector{now: now, windowSec: windowSec, threshold: threshold, counters: make(map[string]*ifCounter)}
}

// Observe records an event for e.Interface and reports a finding the
// moment that interface's per-window count crosses Threshold. The
// counter resets whenever the current bucket has aged past WindowSec.
func (d *InterfaceStormDetector) Observe(e *event.Event) (InterfaceStormFinding, bool) {
	if e.Interface == "" {
		return InterfaceStormFinding{}, false
	}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.counters[e.Interface]
	if !ok || now.Sub(c.windowStart) >= time.Duration(d.windowSec)*time.Second {
		c = &ifCounter{windowStart: now}
		d.counters[e.Interface] = c
	}
	c.count++

	if c.count > d.threshold {
		return InterfaceStormFinding{Interface: e.Interface, Count: c.count}, true
	}
	return InterfaceStormFinding{}, false
}
