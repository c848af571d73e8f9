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

// Package processor implements the Event Processor of §4.E: it wires
// the object pool, SPSC ring, rate limiter and worker pool into the
// single component an EventSource submits to and handlers register
// against. Grounded on core.Store's GetOrCreate fast/slow path plus
// api.Server.handleCheckRateLimit's submit/consume/telemetry shape.
package processor

import (
	"sync"
	"sync/atomic"

	"netwatch/internal/logging"
	"netwatch/internal/pipeline/pool"
	"netwatch/internal/pipeline/ratelimit"
	"netwatch/internal/pipeline/ring"
	"netwatch/internal/pipeline/workerpool"
	"netwatch/internal/telemetry"
	"netwatch/pkg/netwatch/event"
)

// Handler receives a fully-owned Event for the duration of the call; it
// must not retain e after returning.
type Handler func(e *event.Event)

// RateLimiter admits or denies one event at submit time. GlobalLimiter
// and MapLimiter below adapt internal/pipeline/ratelimit's two shapes
// to this single interface.
type RateLimiter interface {
	Allow(eventType uint32) bool
}

// GlobalLimiter adapts a single shared token bucket to RateLimiter,
// ignoring the event type.
type GlobalLimiter struct{ *ratelimit.Limiter }

// Allow consumes one token regardless of eventType.
func (g GlobalLimiter) Allow(eventType uint32) bool { return g.Limiter.Allow(1) }

// MapLimiter adapts a per-event-type limiter map to RateLimiter.
type MapLimiter struct{ *ratelimit.Map }

// Allow consumes one token from the bucket for eventType.
func (m MapLimiter) Allow(eventType uint32) bool { return m.Map.Allow(eventType, 1) }

// AndLimiter composes a global limiter and a per-event-type map
// limiter into the single RateLimiter submit consults, matching §4.E's
// two-step admission check: "(1) consult global limiter; (2) consult
// map limiter for event.event_type". Both are real rate limiters (not
// alternatives), so an event must clear the global bucket before the
// map bucket for its event type is even consulted — a nil field always
// admits, so a caller that only wants one of the two checks may leave
// the other unset.
type AndLimiter struct {
	Global RateLimiter
	Map    RateLimiter
}

// Allow consults Global first, then Map, short-circuiting on the first
// denial so a globally-throttled event never also docks its
// per-event-type bucket.
func (a AndLimiter) Allow(eventType uint32) bool {
	if a.Global != nil && !a.Global.Allow(eventType) {
		return false
	}
	if a.Map != nil && !a.Map.Allow(eventType) {
		return false
	}
	return true
}

// Config configures a Processor. Workers and MaxQueueLen feed the
// underlying workerpool.Pool; PoolCapacity and RingCapacity feed the
// object pool and SPSC ring respectively. Limiter is optional; a nil
// Limiter admits every submission.
type Config struct {
	PoolCapacity int
	RingCapacity int
	Workers      int
	MaxQueueLen  int
	Limiter      RateLimiter
}

// Processor is the event pipeline's single entry and dispatch point.
// Submit is produced by exactly one goroutine (the EventSource); the
// internal dispatch loop is the ring's sole consumer.
type Processor struct {
	pool    *pool.Pool
	ring    *ring.Ring
	workers *workerpool.Pool
	limiter RateLimiter

	handlersMu sync.RWMutex
	handlers   map[int]Handler
	nextID     int

	dispatchMu   sync.Mutex
	dispatchCond *sync.Cond
	started      bool
	stopping     bool
	immediate    bool
	dispatchDone chan struct{}

	inFlight sync.WaitGroup

	// turnstileMu/Cond/nextTicket/nextServe enforce §5's ordering
	// guarantee ("events delivered to any single handler preserve the
	// order in which they were dequeued") even though workers run the
	// handler chain for distinct events concurrently: each dequeued
	// event draws a ticket, and a worker blocks at the handler-call
	// boundary until its ticket is next in line.
	turnstileMu   sync.Mutex
	turnstileCond *sync.Cond
	nextTicket    uint64
	nextServe     uint64

	droppedFull atomic.Uint64
	droppedRate atomic.Uint64
	submitted   atomic.Uint64
	processed   atomic.Uint64
}

// New builds a Processor but does not yet start its dispatch loop; call
// Start to begin draining the ring. Submissions made before Start are
// retained in the ring up to its capacity (used to exercise overflow
// deterministically in tests, and harmless in production since Start
// is always called immediately after New).
func New(cfg Config) *Processor {
	p := &Processor{
		pool:         pool.New(cfg.PoolCapacity),
		ring:         ring.New(cfg.RingCapacity),
		workers:      workerpool.New(cfg.Workers, cfg.MaxQueueLen),
		limiter:      cfg.Limiter,
		handlers:     make(map[int]Handler),
		dispatchDone: make(chan struct{}),
	}
	p.dispatchCond = sync.NewCond(&p.dispatchMu)
	p.turnstileCond = sync.NewCond(&p.turnstileMu)
	return p
}

// RegisterHandler adds h and returns an id usable with UnregisterHandler.
func (p *Processor) RegisterHandler(h Handler) int {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = h
	return id
}

// UnregisterHandler removes the handler registered under id, if any.
func (p *Processor) UnregisterHandler(id int) {
	p.handlersMu.Lock()
	defer p.handlersMu.Unlock()
	delete(p.handlers, id)
}

// Start begins the dispatch loop that drains the ring and posts work to
// the worker pool. Calling Start more than once is a no-op.
func (p *Processor) Start() {
	p.dispatchMu.Lock()
	if p.started {
		p.dispatchMu.Unlock()
		return
	}
	p.started = true
	p.dispatchMu.Unlock()
	go p.dispatchLoop()
}

// Submit copies e into a pool- or heap-owned slot and enqueues it on the
// ring. Submit never blocks: it returns false if the processor is
// shutting down, if the rate limiter denies the event, or if the ring
// is full. Submit does not retain e; the caller may reuse or free it
// immediately after Submit returns.
func (p *Processor) Submit(e *event.Event) bool {
	p.dispatchMu.Lock()
	closed := p.stopping
	p.dispatchMu.Unlock()
	if closed {
		return false
	}

	if p.limiter != nil && !p.limiter.Allow(e.EventType) {
		p.droppedRate.Add(1)
		telemetry.EventsDroppedRate.Inc()
		return false
	}

	owned := p.pool.Alloc()
	*owned = *e

	if !p.ring.Enqueue(owned) {
		p.pool.Free(owned)
		p.droppedFull.Add(1)
		return false
	}
	p.submitted.Add(1)
	telemetry.EventsSubmitted.Inc()
	p.inFlight.Add(1)

	p.dispatchMu.Lock()
	p.dispatchCond.Signal()
	p.dispatchMu.Unlock()
	return true
}

// dispatchLoop is the ring's single consumer. It drains entries and
// posts one workerpool task per event, each task running every
// registered handler in sequence so a single event is handled by
// exactly one worker. Because dispatchLoop is single-threaded, ticket
// assignment in dispatchOne happens in dequeue order without its own
// lock.
func (p *Processor) dispatchLoop() {
	defer close(p.dispatchDone)
	for {
		p.dispatchMu.Lock()
		for p.ring.Len() == 0 && !p.stopping {
			p.dispatchCond.Wait()
		}
		if p.ring.Len() == 0 && p.stopping {
			p.dispatchMu.Unlock()
			return
		}
		immediate := p.immediate
		p.dispatchMu.Unlock()

		ev, ok := p.ring.Dequeue()
		if !ok {
			continue
		}
		owned := ev.(*event.Event)
		if immediate {
			p.pool.Free(owned)
			p.inFlight.Done()
			continue
		}
		p.dispatchOne(owned)
	}
}

func (p *Processor) dispatchOne(owned *event.Event) {
	ticket := p.nextTicket
	p.nextTicket++

	ok := p.workers.Submit(func(arg any) {
		defer p.inFlight.Done()
		ev := arg.(*event.Event)
		p.waitTurn(ticket)
		// Free and advanceTurn must run even if a handler panics: skipping
		// advanceTurn would strand every later ticket in waitTurn forever,
		// and skipping Free would leak the pool slot. runHandlers recovers
		// internally so a panic here never escapes this closure.
		defer p.pool.Free(ev)
		defer p.advanceTurn()
		p.runHandlers(ev)
	}, owned, workerpool.Normal)
	if !ok {
		// worker pool's bounded queue rejected the task; this only
		// happens if MaxQueueLen is configured tighter than the ring,
		// so honor the same drop accounting as a full ring. The ticket
		// is still owed a turn so later tickets are not stranded.
		p.droppedFull.Add(1)
		go func() {
			defer p.inFlight.Done()
			p.waitTurn(ticket)
			p.pool.Free(owned)
			p.advanceTurn()
		}()
	}
}

// waitTurn blocks the calling worker until ticket is next in line for
// handler invocation.
func (p *Processor) waitTurn(ticket uint64) {
	p.turnstileMu.Lock()
	for p.nextServe != ticket {
		p.turnstileCond.Wait()
	}
	p.turnstileMu.Unlock()
}

// advanceTurn releases the next waiting ticket.
func (p *Processor) advanceTurn() {
	p.turnstileMu.Lock()
	p.nextServe++
	p.turnstileCond.Broadcast()
	p.turnstileMu.Unlock()
}

func (p *Processor) runHandlers(e *event.Event) {
	p.handlersMu.RLock()
	snapshot := make([]Handler, 0, len(p.handlers))
	for _, h := range p.handlers {
		snapshot = append(snapshot, h)
	}
	p.handlersMu.RUnlock()

	for _, h := range snapshot {
		callHandler(h, e)
	}
	p.processed.Add(1)
	telemetry.EventsProcessed.Inc()
}

// callHandler runs h and recovers a panic so one failing handler cannot
// stop the worker, skip the remaining handlers, or (via the panic
// unwinding past dispatchOne's deferred cleanup) leak the event's pool
// slot or stall the turnstile for every later ticket.
func callHandler(h Handler, e *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("processor: handler panic recovered: %v", r)
		}
	}()
	h(e)
}

// Wait blocks until every successfully submitted event has finished
// passing through every registered handler (pending==0 and active==0).
func (p *Processor) Wait() {
	p.inFlight.Wait()
}

// Destroy stops the processor. wait=true drains the ring and lets
// in-flight handler invocations finish before workers join; wait=false
// discards queued events immediately and joins workers without waiting
// for queued (but not yet started) work.
func (p *Processor) Destroy(wait bool) {
	p.dispatchMu.Lock()
	p.stopping = true
	p.immediate = !wait
	p.dispatchMu.Unlock()
	p.dispatchCond.Broadcast()

	p.dispatchMu.Lock()
	started := p.started
	p.dispatchMu.Unlock()
	if started {
		<-p.dispatchDone
	}
	p.workers.Shutdown(wait)
}

// Stats is a point-in-time snapshot of processor-level counters.
type Stats struct {
	Submitted   uint64
	Processed   uint64
	DroppedFull uint64
	DroppedRate uint64
	Pool        pool.Stats
	Ring        ring.Stats
	Workers     workerpool.Stats
}

// Snapshot returns the current counter values across every owned
// sub-component.
func (p *Processor) Snapshot() Stats {
	return Stats{
		Submitted:   p.submitted.Load(),
		Processed:   p.processed.Load(),
		DroppedFull: p.droppedFull.Load(),
		DroppedRate: p.droppedRate.Load(),
		Pool:        p.pool.Snapshot(),
		Ring:        p.ring.Snapshot(),
		Workers:     p.workers.Snapshot(),
	}
}
