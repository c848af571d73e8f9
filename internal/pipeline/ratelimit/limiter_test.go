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

package ratelimit

import (
	"testing"
	"time"
)

// Test_Limiter_BurstThenRefill mirrors scenario S4: a bucket rate_limit={2, 60}
// admits 2 immediate requests, denies the rest within the window, then
// admits again once enough time has elapsed to refill.
func Test_Limiter_BurstThenRefill(t *testing.T) {
	clock := time.Unix(0, 0)
	now := func() time.Time { return clock }
	// rate: 2 tokens per 60s window => rate = 2.0/60.0 tokens/sec, burst=2
	l := NewWithClock(2.0/60.0, 2, now)

	admits := 0
	for i := 0; i < 5; i++ {
		if l.Allow(1) {
			admits++
		}
	}
	if admits != 2 {
		t.Fatalf("expected 2 admits within burst, got %d", admits)
	}
	allowed, denied := l.Counts()
	if allowed != 2 || denied != 3 {
		t.Fatalf("expected allowed=2 denied=3, got allowed=%d denied=%d", allowed, denied)
	}

	clock = clock.Add(61 * time.Second)
	if !l.Allow(1) {
		t.Fatalf("expected bucket to have refilled after 61s")
	}
}

func Test_Map_LazyPerKeyBuckets(t *testing.T) {
	m := NewMap(1, 1)
	if m.Len() != 0 {
		t.Fatalf("expected no buckets before first use")
	}
	if !m.Allow(7, 1) {
		t.Fatalf("expected first request on a fresh bucket to admit")
	}
	if m.Allow(7, 1) {
		t.Fatalf("expected second immediate request on same key to be denied")
	}
	if !m.Allow(9, 1) {
		t.Fatalf("expected a different key's bucket to be independent")
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 distinct keyed buckets, got %d", m.Len())
	}
}
