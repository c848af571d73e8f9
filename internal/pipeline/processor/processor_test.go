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

package processor

import (
	"sync"
	"testing"

	"netwatch/internal/pipeline/ratelimit"
	"netwatch/pkg/netwatch/event"
)

// Test_Processor_RingOverflowThenDrainInOrder implements scenario S5:
// ring capacity 4, 8 submits while the dispatch loop is paused (Start
// not yet called) deliver exactly 4 and drop 4; starting the dispatch
// loop then delivers exactly the 4 accepted events in submission order.
func Test_Processor_RingOverflowThenDrainInOrder(t *testing.T) {
	p := New(Config{PoolCapacity: 8, RingCapacity: 4, Workers: 2, MaxQueueLen: 16})

	var mu sync.Mutex
	var seen []uint64
	var wg sync.WaitGroup
	p.RegisterHandler(func(e *event.Event) {
		mu.Lock()
		seen = append(seen, e.Sequence)
		mu.Unlock()
		wg.Done()
	})

	var accepted int
	for i := 0; i < 8; i++ {
		wg.Add(1)
		if !p.Submit(&event.Event{Sequence: uint64(i)}) {
			wg.Done()
			continue
		}
		accepted++
	}
	if accepted != 4 {
		t.Fatalf("expected exactly 4 accepted submissions before Start, got %d", accepted)
	}
	if got := p.Snapshot().DroppedFull; got != 4 {
		t.Fatalf("expected 4 dropped-full events, got %d", got)
	}

	p.Start()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 4 {
		t.Fatalf("expected exactly 4 delivered events, got %d", len(seen))
	}
	for i, seq := range seen {
		if seq != uint64(i) {
			t.Fatalf("expected FIFO delivery order 0..3, got %v at index %d", seq, i)
		}
	}
}

func Test_Processor_RateLimiterDenyDropsBeforeRing(t *testing.T) {
	limiter := ratelimit.New(0, 1) // burst of exactly one token, no refill
	p := New(Config{PoolCapacity: 4, RingCapacity: 4, Workers: 1, MaxQueueLen: 4, Limiter: GlobalLimiter{limiter}})
	p.Start()
	defer p.Destroy(false)

	if !p.Submit(&event.Event{Sequence: 1}) {
		t.Fatalf("expected the first submission to consume the only token")
	}
	if p.Submit(&event.Event{Sequence: 2}) {
		t.Fatalf("expected the second submission to be rate-limited")
	}
	if got := p.Snapshot().DroppedRate; got != 1 {
		t.Fatalf("expected 1 rate-limited drop, got %d", got)
	}
}

func Test_Processor_WaitBlocksUntilPendingAndActiveAreZero(t *testing.T) {
	p := New(Config{PoolCapacity: 4, RingCapacity: 4, Workers: 2, MaxQueueLen: 4})
	p.Start()
	defer p.Destroy(true)

	var processed int
	var mu sync.Mutex
	p.RegisterHandler(func(e *event.Event) {
		mu.Lock()
		processed++
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		if !p.Submit(&event.Event{Sequence: uint64(i)}) {
			t.Fatalf("expected submission %d to succeed", i)
		}
	}
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	if processed != 3 {
		t.Fatalf("expected all 3 events processed by the time Wait returned, got %d", processed)
	}
}

func Test_Processor_DestroyWaitFalseDropsQueuedWithoutPanicking(t *testing.T) {
	p := New(Config{PoolCapacity: 4, RingCapacity: 4, Workers: 1, MaxQueueLen: 4})
	p.Submit(&event.Event{Sequence: 1})
	p.Submit(&event.Event{Sequence: 2})
	p.Destroy(false)
}

func Test_Processor_HandlerUnregisterStopsFutureDelivery(t *testing.T) {
	p := New(Config{PoolCapacity: 4, RingCapacity: 4, Workers: 1, MaxQueueLen: 4})
	p.Start()
	defer p.Destroy(true)

	var calls int
	var mu sync.Mutex
	id := p.RegisterHandler(func(e *event.Event) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	p.Submit(&event.Event{Sequence: 1})
	p.Wait()
	p.UnregisterHandler(id)
	p.Submit(&event.Event{Sequence: 2})
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one delivery before unregister, got %d", calls)
	}
}

// Test_Processor_HandlerPanicDoesNotLeakPoolSlotOrDeadlockTurnstile covers
// the fix for a panicking handler: it must not strand the panicking
// event's pool slot, and — critically — it must not stall nextServe
// forever, which would otherwise block every subsequently dequeued
// event's waitTurn call permanently.
func Test_Processor_HandlerPanicDoesNotLeakPoolSlotOrDeadlockTurnstile(t *testing.T) {
	p := New(Config{PoolCapacity: 4, RingCapacity: 4, Workers: 2, MaxQueueLen: 4})
	p.Start()
	defer p.Destroy(true)

	var mu sync.Mutex
	var seen []uint64
	p.RegisterHandler(func(e *event.Event) {
		if e.Sequence == 1 {
			panic("boom")
		}
		mu.Lock()
		seen = append(seen, e.Sequence)
		mu.Unlock()
	})

	if !p.Submit(&event.Event{Sequence: 1}) {
		t.Fatalf("expected the panicking event to be submitted")
	}
	for i := uint64(2); i <= 4; i++ {
		if !p.Submit(&event.Event{Sequence: i}) {
			t.Fatalf("expected submission %d to succeed", i)
		}
	}
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("expected the 3 non-panicking events to still be delivered despite the panic, got %d: %v", len(seen), seen)
	}

	stats := p.Snapshot()
	if stats.Pool.InUse != 0 {
		t.Fatalf("expected the panicking event's pool slot to be freed, got %d still in use", stats.Pool.InUse)
	}
}

// Test_AndLimiter_ConsultsBothLegs proves the composite limiter denies
// when either leg denies, and admits only when both admit, matching the
// two-step global-then-per-event-type admission check.
func Test_AndLimiter_ConsultsBothLegs(t *testing.T) {
	allowAll := ratelimit.New(1e9, 1e9)
	denyAll := ratelimit.New(0, 0)

	and := AndLimiter{Global: GlobalLimiter{allowAll}, Map: MapLimiter{ratelimit.NewMap(1e9, 1e9)}}
	if !and.Allow(1) {
		t.Fatalf("expected both legs admitting to admit")
	}

	blockedGlobal := AndLimiter{Global: GlobalLimiter{denyAll}, Map: MapLimiter{ratelimit.NewMap(1e9, 1e9)}}
	if blockedGlobal.Allow(1) {
		t.Fatalf("expected a denying global leg to deny regardless of the map leg")
	}

	blockedMap := AndLimiter{Global: GlobalLimiter{allowAll}, Map: MapLimiter{ratelimit.NewMap(0, 0)}}
	if blockedMap.Allow(1) {
		t.Fatalf("expected a denying map leg to deny even though the global leg admits")
	}
}
