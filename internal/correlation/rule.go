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

package correlation

import (
	"fmt"
	"sync"
	"time"

	"netwatch/internal/filter/compiler"
	"netwatch/internal/filter/parser"
	"netwatch/internal/filter/vm"
	"netwatch/pkg/netwatch/event"
)

// Rule has a name, a set of conditions (any one of which admits an event
// into the rule's window), a time window, and the event count required
// to emit a Result (§4.K).
type Rule struct {
	Name          string
	Conditions    []string
	TimeWindowSec int
	EventCount    int
	WindowCap     int // 0 defaults to max(EventCount*4, 16)
}

// Result is emitted when a rule's window reaches EventCount within
// TimeWindowSec. Id is deterministic: "<rule>-<n>" with n a strictly
// monotonic per-rule counter (invariant 9).
type Result struct {
	ID        string
	RuleName  string
	EmittedAt time.Time
	EventSeqs []uint64
}

type compiledRule struct {
	rule      Rule
	bytecodes []*compiler.Bytecode

	mu      sync.Mutex
	window  *timeWindow
	counter uint64
}

// Engine evaluates every registered correlation rule against each
// incoming event.
type Engine struct {
	now func() time.Time
	vm  *vm.VM

	mu    sync.RWMutex
	rules map[string]*compiledRule
}

// New returns an Engine using the wall clock.
func New() *Engine { return NewWithClock(time.Now) }

// NewWithClock is New with an injectable clock for deterministic tests.
func NewWithClock(now func() time.Time) *Engine {
	return &Engine{now: now, vm: vm.New(false), rules: make(map[string]*compiledRule)}
}

// Register compiles every condition in rule.Conditions and adds it to
// the engine. At least one condition is required.
func (eng *Engine) Register(rule Rule) error {
	if len(rule.Conditions) == 0 {
		return fmt.Errorf("correlation rule %q: at least one condition is required", rule.Name)
	}
	bytecodes := make([]*compiler.Bytecode, 0, len(rule.Conditions))
	for _, cond := range rule.Conditions {
		result := parser.Parse(cond)
		if !result.Valid {
			return fmt.Errorf("correlation rule %q: condition %q parse error: %w", rule.Name, cond, result.Error)
		}
		bc, err := compiler.Compile(result.AST)
		if err != nil {
			return fmt.Errorf("correlation rule %q: condition %q compile error: %w", rule.Name, cond, err)
		}
		bytecodes = append(bytecodes, bc)
	}

	windowCap := rule.WindowCap
	if windowCap < 1 {
		windowCap = rule.EventCount * 4
		if windowCap < 16 {
			windowCap = 16
		}
	}

	cr := &compiledRule{rule: rule, bytecodes: bytecodes, window: newTimeWindow(windowCap)}
	eng.mu.Lock()
	eng.rules[rule.Name] = cr
	eng.mu.Unlock()
	return nil
}

// Process evaluates e against every registered rule, returning a Result
// for each rule whose window reached its EventCount threshold. A rule's
// window is cleared after it emits, so the next Result requires a fresh
// batch of EventCount matches.
func (eng *Engine) Process(e *event.Event) []Result {
	eng.mu.RLock()
	snapshot := make([]*compiledRule, 0, len(eng.rules))
	for _, cr := range eng.rules {
		snapshot = append(snapshot, cr)
	}
	eng.mu.RUnlock()

	now := eng.now()
	var results []Result
	for _, cr := range snapshot {
		if !eng.matchesAny(cr, e) {
			continue
		}
		if result, ok := cr.process(now, e.Sequence); ok {
			results = append(results, result)
		}
	}
	return results
}

func (eng *Engine) matchesAny(cr *compiledRule, e *event.Event) bool {
	for _, bc := range cr.bytecodes {
		if eng.vm.Eval(bc, e) {
			return true
		}
	}
	return false
}

func (cr *compiledRule) process(now time.Time, seq uint64) (Result, bool) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	cr.window.add(now, seq)
	cr.window.expire(now, cr.rule.TimeWindowSec)

	if cr.window.count() < cr.rule.EventCount {
		return Result{}, false
	}

	entries := cr.window.query(nil)
	seqs := make([]uint64, len(entries))
	for i, en := range entries {
		seqs[i] = en.seq
	}

	cr.counter++
	result := Result{
		ID:        fmt.Sprintf("%s-%d", cr.rule.Name, cr.counter),
		RuleName:  cr.rule.Name,
		EmittedAt: now,
		EventSeqs: seqs,
	}
	cr.window.clear()
	return result, true
}
