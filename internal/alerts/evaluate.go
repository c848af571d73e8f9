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

package alerts

import (
	"sync/atomic"
	"time"

	"netwatch/internal/filter/vm"
	"netwatch/pkg/netwatch/event"
)

var evalVM = vm.New(false)

// OnEvent evaluates every enabled alert rule against e and appends a new
// Active Instance to the history for each rule that matches and clears
// suppression/rate-limit gating.
func (t *Table) OnEvent(e *event.Event) []Instance {
	t.rulesMu.RLock()
	snapshot := make([]*alertRule, 0, len(t.rules))
	for _, ar := range t.rules {
		if ar.rule.Enabled {
			snapshot = append(snapshot, ar)
		}
	}
	t.rulesMu.RUnlock()

	var triggered []Instance
	for _, ar := range snapshot {
		if inst, ok := t.evalOne(ar, e); ok {
			triggered = append(triggered, inst)
		}
	}
	return triggered
}

func (t *Table) evalOne(ar *alertRule, e *event.Event) (Instance, bool) {
	t.bumpStat(ar.rule.Name, func(s *Stats) { atomic.AddUint64(&s.Evaluations, 1) })

	if !evalVM.Eval(ar.bc, e) {
		return Instance{}, false
	}
	t.bumpStat(ar.rule.Name, func(s *Stats) { atomic.AddUint64(&s.Matches, 1) })

	now := t.now()
	allowed, suppressed, rateLimited := gateTrigger(ar, now)
	if !allowed {
		if suppressed {
			t.bumpStat(ar.rule.Name, func(s *Stats) { atomic.AddUint64(&s.Suppressed, 1) })
		}
		if rateLimited {
			t.bumpStat(ar.rule.Name, func(s *Stats) { atomic.AddUint64(&s.RateLimited, 1) })
		}
		return Instance{}, false
	}

	inst := Instance{
		ID:          t.nextID.Add(1),
		RuleName:    ar.rule.Name,
		Severity:    ar.rule.Severity,
		State:       StateActive,
		TriggeredAt: now,
		EventSeq:    e.Sequence,
	}
	t.appendHistory(inst)
	t.bumpStat(ar.rule.Name, func(s *Stats) { atomic.AddUint64(&s.Active, 1) })
	return inst, true
}

func (t *Table) bumpStat(name string, f func(*Stats)) {
	t.statsMu.Lock()
	s, ok := t.stats[name]
	t.statsMu.Unlock()
	if ok {
		f(s)
	}
}

// gateTrigger applies the same suppression/rate-limit gate as
// hooks.Hook.allowTrigger, duplicated here rather than shared because
// alertRule and hooks.Hook intentionally have no common exported type
// (§9: action targets and alert instances are independent tagged
// sums, not a shared inheritance hierarchy).
func gateTrigger(ar *alertRule, now time.Time) (allowed, suppressed, rateLimited bool) {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	nowNanos := now.UnixNano()
	if ar.suppressUntil != 0 && nowNanos < ar.suppressUntil {
		return false, true, false
	}

	if ar.rule.RateLimitCount > 0 {
		windowNanos := int64(ar.rule.RateLimitWindowSec) * int64(time.Second)
		count := 0
		limit := len(ar.triggerTimes)
		upTo := limit
		if !ar.triggerFull {
			upTo = ar.triggerNext
		}
		for i := 0; i < upTo; i++ {
			if nowNanos-ar.triggerTimes[i] <= windowNanos {
				count++
			}
		}
		if count >= ar.rule.RateLimitCount {
			return false, false, true
		}
		ar.triggerTimes[ar.triggerNext] = nowNanos
		ar.triggerNext++
		if ar.triggerNext >= limit {
			ar.triggerNext = 0
			ar.triggerFull = true
		}
	}

	if ar.rule.SuppressSec > 0 {
		ar.suppressUntil = nowNanos + int64(ar.rule.SuppressSec)*int64(time.Second)
	}
	return true, false, false
}

// appendHistory inserts inst into the fixed-capacity ring, evicting the
// oldest entry once full.
func (t *Table) appendHistory(inst Instance) {
	t.historyMu.Lock()
	defer t.historyMu.Unlock()
	t.history[t.next] = inst
	t.next++
	if t.next >= len(t.history) {
		t.next = 0
		t.full = true
	}
}

// History returns a copy of the currently retained instances, oldest
// first.
func (t *Table) History() []Instance {
	t.historyMu.Lock()
	defer t.historyMu.Unlock()
	if !t.full {
		out := make([]Instance, t.next)
		copy(out, t.history[:t.next])
		return out
	}
	out := make([]Instance, len(t.history))
	copy(out, t.history[t.next:])
	copy(out[len(t.history)-t.next:], t.history[:t.next])
	return out
}

// findLocked returns the index of the instance with the given id, or -1.
func (t *Table) findLocked(id uint64) int {
	for i := range t.history {
		if t.history[i].ID == id && (t.full || i < t.next) {
			return i
		}
	}
	return -1
}

// Acknowledge transitions the instance with id from Active to
// Acknowledged, recording actor. It returns false if the instance is
// not found or not in a state that permits acknowledgement.
func (t *Table) Acknowledge(id uint64, actor string) bool {
	t.historyMu.Lock()
	defer t.historyMu.Unlock()
	idx := t.findLocked(id)
	if idx < 0 || t.history[idx].State != StateActive {
		return false
	}
	t.history[idx].State = StateAcknowledged
	t.history[idx].AckedBy = actor
	t.history[idx].AckedAt = t.now()
	return true
}

// Resolve transitions the instance with id to Inactive from Active or
// Acknowledged. It returns false if the instance is not found or
// already inactive.
func (t *Table) Resolve(id uint64) bool {
	t.historyMu.Lock()
	defer t.historyMu.Unlock()
	idx := t.findLocked(id)
	if idx < 0 {
		return false
	}
	switch t.history[idx].State {
	case StateActive, StateAcknowledged:
		t.history[idx].State = StateInactive
		t.history[idx].ResolvedAt = t.now()
		return true
	default:
		return false
	}
}

// Suppress transitions the instance with id from Active to Suppressed.
// A caller (e.g. a scheduled sweep) is expected to call Reactivate once
// the suppression window has elapsed.
func (t *Table) Suppress(id uint64) bool {
	t.historyMu.Lock()
	defer t.historyMu.Unlock()
	idx := t.findLocked(id)
	if idx < 0 || t.history[idx].State != StateActive {
		return false
	}
	t.history[idx].State = StateSuppressed
	return true
}

// Reactivate transitions a Suppressed instance back to Active, modeling
// the state machine's window_exp edge.
func (t *Table) Reactivate(id uint64) bool {
	t.historyMu.Lock()
	defer t.historyMu.Unlock()
	idx := t.findLocked(id)
	if idx < 0 || t.history[idx].State != StateSuppressed {
		return false
	}
	t.history[idx].State = StateActive
	return true
}
