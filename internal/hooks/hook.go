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

// Package hooks evaluates compiled filter conditions against incoming
// events and dispatches exec/log/webhook actions, honoring per-rule
// rate limits, suppression windows, and a bounded concurrency gate
// (§4.I).
package hooks

import (
	"sync"
	"sync/atomic"
	"time"

	"netwatch/internal/filter/compiler"
	"netwatch/internal/filter/parser"
)

// ActionKind tags which action target a rule invokes.
type ActionKind int

const (
	ActionExec ActionKind = iota
	ActionLog
	ActionWebhook
)

// ExecAction spawns a child process when its rule triggers.
type ExecAction struct {
	Script    string
	TimeoutMS int
	Capture   bool
	Async     bool
}

// LogAction appends (or truncates-then-writes) a line to a file.
type LogAction struct {
	Path   string
	Append bool
}

// WebhookAction POSTs (or GETs) a JSON document to an HTTP endpoint.
type WebhookAction struct {
	URL        string
	Method     string
	TimeoutMS  int
	Require2xx bool
}

// Action is the tagged sum of action targets a Rule may invoke.
type Action struct {
	Kind    ActionKind
	Exec    ExecAction
	Log     LogAction
	Webhook WebhookAction
}

// Severity classifies a rule for alerting/webhook payloads.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// Rule is a named (condition, action, limits) triple (§6 Rule config
// object). RateLimitCount<=0 means unlimited; SuppressSec<=0 means no
// suppression window.
type Rule struct {
	Name               string
	Condition          string
	Enabled            bool
	Severity           Severity
	Action             Action
	RateLimitCount     int
	RateLimitWindowSec int
	SuppressSec        int
}

// Stats are the atomically-updated counters a Hook accumulates across
// its lifetime.
type Stats struct {
	Evaluations     uint64
	Matches         uint64
	Executions      uint64
	Successes       uint64
	Failures        uint64
	Timeouts        uint64
	RateLimited     uint64
	Suppressed      uint64
	MinDurationMS   int64
	MaxDurationMS   int64
	TotalDurationMS int64
}

// Snapshot is a point-in-time, non-atomic copy of Stats safe to read
// after it is taken.
type Snapshot = Stats

func (s *Stats) snapshot() Snapshot {
	return Snapshot{
		Evaluations:     atomic.LoadUint64(&s.Evaluations),
		Matches:         atomic.LoadUint64(&s.Matches),
		Executions:      atomic.LoadUint64(&s.Executions),
		Successes:       atomic.LoadUint64(&s.Successes),
		Failures:        atomic.LoadUint64(&s.Failures),
		Timeouts:        atomic.LoadUint64(&s.Timeouts),
		RateLimited:     atomic.LoadUint64(&s.RateLimited),
		Suppressed:      atomic.LoadUint64(&s.Suppressed),
		MinDurationMS:   atomic.LoadInt64(&s.MinDurationMS),
		MaxDurationMS:   atomic.LoadInt64(&s.MaxDurationMS),
		TotalDurationMS: atomic.LoadInt64(&s.TotalDurationMS),
	}
}

func (s *Stats) recordResult(dur time.Duration, err error, timedOut bool) {
	atomic.AddUint64(&s.Executions, 1)
	ms := dur.Milliseconds()
	for {
		old := atomic.LoadInt64(&s.MinDurationMS)
		if old != 0 && old <= ms {
			break
		}
		if atomic.CompareAndSwapInt64(&s.MinDurationMS, old, ms) {
			break
		}
	}
	for {
		old := atomic.LoadInt64(&s.MaxDurationMS)
		if old >= ms {
			break
		}
		if atomic.CompareAndSwapInt64(&s.MaxDurationMS, old, ms) {
			break
		}
	}
	atomic.AddInt64(&s.TotalDurationMS, ms)

	switch {
	case timedOut:
		atomic.AddUint64(&s.Timeouts, 1)
		atomic.AddUint64(&s.Failures, 1)
	case err != nil:
		atomic.AddUint64(&s.Failures, 1)
	default:
		atomic.AddUint64(&s.Successes, 1)
	}
}

// Hook pairs a compiled rule with its own trigger history and stats. An
// instance is created by Table.Register and lives for the rule's
// registered lifetime.
type Hook struct {
	rule  Rule
	ast   *parser.Node
	bc    *compiler.Bytecode
	stats Stats

	mu            sync.Mutex // guards triggerTimes/triggerNext/triggerFull/suppressUntil
	triggerTimes  []int64    // ring of trigger timestamps (unix nanos), len == rate_limit_count
	triggerNext   int
	triggerFull   bool
	suppressUntil int64 // unix nanos; 0 means not suppressed
}

// Name returns the hook's rule name.
func (h *Hook) Name() string { return h.rule.Name }

// Stats returns a point-in-time snapshot of the hook's counters.
func (h *Hook) Stats() Snapshot { return h.stats.snapshot() }

// allowTrigger checks suppression and the rate-limit ring under h.mu,
// and if the trigger is allowed, records it (advancing the ring and
// arming suppression) before returning true. It takes h.mu itself, so
// the caller must not hold it.
func (h *Hook) allowTrigger(now time.Time) (allowed bool, suppressed bool, rateLimited bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	nowNanos := now.UnixNano()
	if h.suppressUntil != 0 && nowNanos < h.suppressUntil {
		return false, true, false
	}

	if h.rule.RateLimitCount > 0 {
		windowNanos := int64(h.rule.RateLimitWindowSec) * int64(time.Second)
		count := 0
		limit := len(h.triggerTimes)
		upTo := limit
		if !h.triggerFull {
			upTo = h.triggerNext
		}
		for i := 0; i < upTo; i++ {
			if nowNanos-h.triggerTimes[i] <= windowNanos {
				count++
			}
		}
		if count >= h.rule.RateLimitCount {
			return false, false, true
		}
		h.triggerTimes[h.triggerNext] = nowNanos
		h.triggerNext++
		if h.triggerNext >= limit {
			h.triggerNext = 0
			h.triggerFull = true
		}
	}

	if h.rule.SuppressSec > 0 {
		h.suppressUntil = nowNanos + int64(h.rule.SuppressSec)*int64(time.Second)
	}
	return true, false, false
}
