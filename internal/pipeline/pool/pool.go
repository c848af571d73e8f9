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

// Package pool provides a bounded, recyclable fixed-size slot allocator
// for netwatch Events. Exhaustion never fails: once the pool's free set
// runs dry, Alloc promotes to a plain heap allocation, and Free silently
// drops anything it does not recognize as one of its own slots.
package pool

import (
	"sync"
	"sync/atomic"

	"netwatch/pkg/netwatch/event"
)

// Pool is a thread-safe, fixed-capacity recycler of *event.Event slots.
type Pool struct {
	capacity int64

	mu   sync.Mutex
	free []*event.Event
	// owned records which *event.Event pointers belong to this pool, so
	// Free can tell a pool slot from a heap fallback without walking the
	// free list.
	owned map[*event.Event]struct{}

	inUse    atomic.Int64
	peakUse  atomic.Int64
	allocs   atomic.Int64
	frees    atomic.Int64
	hits     atomic.Int64
	misses   atomic.Int64
}

// New creates a Pool pre-populated with capacity zeroed slots.
func New(capacity int) *Pool {
	if capacity < 0 {
		capacity = 0
	}
	p := &Pool{
		capacity: int64(capacity),
		free:     make([]*event.Event, 0, capacity),
		owned:    make(map[*event.Event]struct{}, capacity),
	}
	for i := 0; i < capacity; i++ {
		e := &event.Event{}
		p.free = append(p.free, e)
		p.owned[e] = struct{}{}
	}
	return p
}

// Alloc returns a zeroed event. It is drawn from the pool's free set when
// available (a "hit"); otherwise it is a fresh heap allocation (a "miss").
// Alloc never fails. InUse/PeakUse only ever count slots drawn from the
// pool's own capacity — a heap-fallback allocation is not pool-owned and
// so cannot make InUse exceed Capacity (invariant: InUse <= Capacity).
func (p *Pool) Alloc() *event.Event {
	p.allocs.Add(1)
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		e := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		p.hits.Add(1)
		p.trackInUse(1)
		e.Reset()
		return e
	}
	p.mu.Unlock()
	p.misses.Add(1)
	return &event.Event{}
}

// Free returns e to the pool if it is one of the pool's own slots;
// otherwise the heap-allocated event is simply dropped for the garbage
// collector. Callers must not use e after calling Free.
func (p *Pool) Free(e *event.Event) {
	if e == nil {
		return
	}
	p.frees.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.owned[e]; !ok {
		return // heap fallback slot; nothing to recycle
	}
	p.trackInUse(-1)
	e.Reset()
	p.free = append(p.free, e)
}

func (p *Pool) trackInUse(delta int64) {
	n := p.inUse.Add(delta)
	for {
		peak := p.peakUse.Load()
		if n <= peak || p.peakUse.CompareAndSwap(peak, n) {
			return
		}
	}
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Capacity   int64
	InUse      int64
	PeakUse    int64
	AllocCount int64
	FreeCount  int64
	Hit        int64
	Miss       int64
}

// Snapshot returns the current counter values.
func (p *Pool) Snapshot() Stats {
	return Stats{
		Capacity:   p.capacity,
		InUse:      p.inUse.Load(),
		PeakUse:    p.peakUse.Load(),
		AllocCount: p.allocs.Load(),
		FreeCount:  p.frees.Load(),
		Hit:        p.hits.Load(),
		Miss:       p.misses.Load(),
	}
}
