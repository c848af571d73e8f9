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

// Package ring implements a lock-free single-producer/single-consumer
// bounded FIFO carrying owned event handles between the ingestion side
// and the worker pool. Capacity is rounded up to the next power of two so
// index wraparound reduces to a mask.
package ring

import "sync/atomic"

// Ring is an SPSC queue of opaque handles. It does not own the handles it
// carries; the caller transfers ownership by enqueueing and receives it
// back by dequeueing. Exactly one goroutine may call Enqueue and exactly
// one (possibly different) goroutine may call Dequeue.
//
// Safety: the slice is written by the producer before the atomic Store of
// head, and read by the consumer after the atomic Load of head; per the
// Go memory model, sync/atomic operations are sequentially consistent and
// establish the same happens-before relationship a mutex would, so the
// plain slice accesses are safely published without a per-slot atomic.
type Ring struct {
	mask uint64
	buf  []any

	head atomic.Uint64 // producer-owned
	tail atomic.Uint64 // consumer-owned

	enqueued   atomic.Uint64
	dequeued   atomic.Uint64
	overflowed atomic.Uint64
	peakDepth  atomic.Uint64
}

// New creates a Ring whose capacity is the next power of two >= capacity
// (minimum 2).
func New(capacity int) *Ring {
	if capacity < 2 {
		capacity = 2
	}
	n := nextPow2(capacity)
	r := &Ring{
		mask: uint64(n - 1),
		buf:  make([]any, n),
	}
	return r
}

func nextPow2(x int) int {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}

// Enqueue publishes item at the producer's head slot. It returns false
// (without blocking) if the ring is full, incrementing the overflow
// counter. Must be called by the single producer goroutine only.
func (r *Ring) Enqueue(item any) bool {
	head := r.head.Load()
	tail := r.tail.Load()
	if head-tail >= uint64(len(r.buf)) {
		r.overflowed.Add(1)
		return false
	}
	r.buf[head&r.mask] = item
	r.head.Store(head + 1)
	r.enqueued.Add(1)
	depth := head + 1 - tail
	for {
		peak := r.peakDepth.Load()
		if depth <= peak || r.peakDepth.CompareAndSwap(peak, depth) {
			break
		}
	}
	return true
}

// Dequeue removes and returns the oldest item. ok is false if the ring is
// empty. Must be called by the single consumer goroutine only.
func (r *Ring) Dequeue() (item any, ok bool) {
	tail := r.tail.Load()
	head := r.head.Load()
	if tail == head {
		return nil, false
	}
	v := r.buf[tail&r.mask]
	r.buf[tail&r.mask] = nil // drop reference so the GC can collect it
	r.tail.Store(tail + 1)
	r.dequeued.Add(1)
	return v, true
}

// Len returns an instantaneous (possibly stale) depth estimate, safe to
// call from either side.
func (r *Ring) Len() int {
	head := r.head.Load()
	tail := r.tail.Load()
	return int(head - tail)
}

// Capacity returns the power-of-two slot count.
func (r *Ring) Capacity() int { return len(r.buf) }

// Stats is a point-in-time snapshot of ring counters.
type Stats struct {
	Enqueued   uint64
	Dequeued   uint64
	Overflowed uint64
	PeakDepth  uint64
}

// Snapshot returns the current counter values.
func (r *Ring) Snapshot() Stats {
	return Stats{
		Enqueued:   r.enqueued.Load(),
		Dequeued:   r.dequeued.Load(),
		Overflowed: r.overflowed.Load(),
		PeakDepth:  r.peakDepth.Load(),
	}
}
