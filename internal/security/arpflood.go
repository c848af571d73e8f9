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
	"container/list"
	"sync"
	"time"

	"netwatch/pkg/netwatch/event"
)

// NeighborFloodFinding reports that the rate of neighbor (ARP/NDP)
// events has exceeded the configured threshold within the window.
type NeighborFloodFinding struct {
	Count     int
	WindowSec int
}

// NeighborFloodDetector keeps a sliding window of recent neighbor event
// timestamps and reports when the count within WindowSec exceeds
// Threshold.
type NeighborFloodDetector struct {
	now       func() time.Time
	windowSec int
	threshold int

	mu      sync.Mutex
	stamps  *list.List
}

// NewNeighborFloodDetector returns a detector using the wall clock.
func NewNeighborFloodDetector(windowSec, threshold int) *NeighborFloodDetector {
	return NewNeighborFloodDetectorWithClock(windowSec, threshold, time.Now)
}

// NewNeighborFloodDetectorWithClock is NewNeighborFloodDetector with an
// injectable clock for deterministic tests.
func NewNeighborFloodDetectorWithClock(windowSec, threshold int, now func() time.Time) *NeighborFloodDetector {
	return &NeighborFloodDetector{now: now, windowSec: windowSec, threshold: threshold, stamps: list.New()}
}

// Observe records e if it is a neighbor event and reports a finding the
// moment the sliding window count crosses Threshold.
func (d *NeighborFloodDetector) Observe(e *event.Event) (NeighborFloodFinding, bool) {
	if e.Kind != event.KindNeighbor {
		return NeighborFloodFinding{}, false
	}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := now.Add(-time.Duration(d.windowSec) * time.Second)
	for front := d.stamps.Front(); front != nil; {
		next := front.Next()
		if front.Value.(time.Time).After(cutoff) {
			break
		}
		d.stamps.Remove(front)
		front = next
	}
	d.stamps.PushBack(now)

	count := d.stamps.Len()
	if count > d.threshold {
		return NeighborFloodFinding{Count: count, WindowSec: d.windowSec}, true
	}
	return NeighborFloodFinding{}, false
}
