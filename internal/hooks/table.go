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

package hooks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"netwatch/internal/filter/compiler"
	"netwatch/internal/filter/parser"
	"netwatch/internal/filter/vm"
	"netwatch/internal/logging"
	"netwatch/internal/ratestate"
	"netwatch/internal/telemetry"
	"netwatch/pkg/netwatch/event"
)

// Table is the fixed-capacity hook table (§4.I). Rule registration is
// guarded by a dedicated rules mutex; action execution always happens
// outside that mutex, against a snapshotted *Hook, so a slow action
// never blocks Register/Unregister or a concurrent OnEvent dispatch.
type Table struct {
	maxHooks int
	now      func() time.Time

	mu    sync.RWMutex
	hooks map[string]*Hook

	sem chan struct{} // concurrency gate, bounded by maxConcurrent

	vm     *vm.VM
	mirror *ratestate.Mirror
}

// New returns a Table bounded to maxHooks registered rules and
// maxConcurrent simultaneously in-flight actions.
func New(maxHooks, maxConcurrent int) *Table {
	return NewWithClock(maxHooks, maxConcurrent, time.Now)
}

// NewWithClock is New with an injectable clock, for deterministic tests
// of rate-limit and suppression-window behavior.
func NewWithClock(maxHooks, maxConcurrent int, now func() time.Time) *Table {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Table{
		maxHooks: maxHooks,
		now:      now,
		hooks:    make(map[string]*Hook),
		sem:      make(chan struct{}, maxConcurrent),
		vm:       vm.New(false),
		mirror:   ratestate.NewDisabled(),
	}
}

// SetStateMirror wires an optional Redis-backed suppression/rate-limit
// mirror so several netwatchd instances sharing one rule set do not
// each independently re-trigger a rule a sibling instance already
// suppressed. Nil re-disables mirroring.
func (t *Table) SetStateMirror(m *ratestate.Mirror) {
	if m == nil {
		m = ratestate.NewDisabled()
	}
	t.mu.Lock()
	t.mirror = m
	t.mu.Unlock()
}

// Register compiles rule.Condition and adds it to the table under
// rule.Name, replacing any existing hook of the same name. It returns a
// ParseError/CompileError wrapped in a plain error if compilation fails;
// registration never partially applies.
func (t *Table) Register(rule Rule) error {
	result := parser.Parse(rule.Condition)
	if !result.Valid {
		return fmt.Errorf("hook %q: condition parse error: %w", rule.Name, result.Error)
	}
	bc, err := compiler.Compile(result.AST)
	if err != nil {
		return fmt.Errorf("hook %q: condition compile error: %w", rule.Name, err)
	}

	ringLen := rule.RateLimitCount
	if ringLen < 1 {
		ringLen = 1
	}

	h := &Hook{
		rule:         rule,
		ast:          result.AST,
		bc:           bc,
		triggerTimes: make([]int64, ringLen),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.hooks[rule.Name]; !exists && len(t.hooks) >= t.maxHooks && t.maxHooks > 0 {
		return fmt.Errorf("hook table full: capacity %d", t.maxHooks)
	}
	t.hooks[rule.Name] = h
	logging.Infof("hooks: registered %q (%s)", rule.Name, rule.Condition)
	return nil
}

// Unregister removes a hook by name. It is a no-op if the name is not
// registered.
func (t *Table) Unregister(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hooks, name)
}

// Get returns the hook registered under name, if any, for stats
// inspection.
func (t *Table) Get(name string) (*Hook, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.hooks[name]
	return h, ok
}

// Len reports the number of currently registered hooks.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.hooks)
}

// OnEvent evaluates every enabled hook's condition against e and
// dispatches actions for the ones that match and pass suppression and
// rate-limit checks. Hooks are snapshotted under a read lock so action
// execution (including blocking sync exec) never holds the rules mutex.
func (t *Table) OnEvent(e *event.Event) {
	t.mu.RLock()
	snapshot := make([]*Hook, 0, len(t.hooks))
	for _, h := range t.hooks {
		if h.rule.Enabled {
			snapshot = append(snapshot, h)
		}
	}
	t.mu.RUnlock()

	for _, h := range snapshot {
		t.evalAndDispatch(h, e)
	}
}

func (t *Table) evalAndDispatch(h *Hook, e *event.Event) {
	atomic.AddUint64(&h.stats.Evaluations, 1)

	if !t.vm.Eval(h.bc, e) {
		return
	}
	atomic.AddUint64(&h.stats.Matches, 1)
	telemetry.HookTriggeredTotal.Inc()

	now := t.now()
	allowed, suppressed, rateLimited := h.allowTrigger(now)
	if allowed && h.rule.SuppressSec > 0 && t.mirror.Enabled() {
		ctx, cancel := ratestate.WithDefaultTimeout(context.Background())
		claimed, err := t.mirror.ClaimSuppression(ctx, h.rule.Name, h.rule.SuppressSec)
		cancel()
		if err != nil {
			logging.Warnf("hooks: rule %q state-mirror claim failed, falling back to local state: %v", h.rule.Name, err)
		} else if !claimed {
			allowed, suppressed = false, true
		}
	}
	if !allowed {
		if suppressed {
			atomic.AddUint64(&h.stats.Suppressed, 1)
			telemetry.HookSuppressedTotal.Inc()
		}
		if rateLimited {
			atomic.AddUint64(&h.stats.RateLimited, 1)
			telemetry.HookRateLimitedTotal.Inc()
		}
		return
	}

	t.sem <- struct{}{}
	run := func() {
		defer func() { <-t.sem }()
		t.execute(h, e)
	}
	if h.rule.Action.Kind == ActionExec && h.rule.Action.Exec.Async {
		go run()
	} else {
		run()
	}
}

func (t *Table) execute(h *Hook, e *event.Event) {
	start := t.now()
	var err error
	var timedOut bool

	switch h.rule.Action.Kind {
	case ActionExec:
		err, timedOut = runExec(h.rule.Action.Exec, e)
	case ActionLog:
		err = runLog(h.rule.Action.Log, h.rule, e, t.now())
	case ActionWebhook:
		err, timedOut = runWebhook(h.rule.Action.Webhook, h.rule, e, t.now())
	default:
		err = fmt.Errorf("hooks: unknown action kind %v", h.rule.Action.Kind)
	}

	dur := t.now().Sub(start)
	h.stats.recordResult(dur, err, timedOut)
	telemetry.HookExecutedTotal.Inc()
	if err != nil {
		telemetry.HookFailedTotal.Inc()
		logging.Warnf("hooks: rule %q action failed: %v", h.rule.Name, err)
	}
}
