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

// Package vm executes compiled filter bytecode (§4.G/§4.H) against an
// event.Event. Evaluation never panics on a semantic mismatch: a type
// mismatch between operands simply evaluates that comparison to false
// ("type-mismatch-is-false"), while a field that names a payload the
// event doesn't carry (e.g. nl.route.gateway on a link event) raises an
// internal error flag that forces the *entire* expression's result to
// false, regardless of how that field's value later combines through
// AND/OR/NOT ("missing-field-is-false", short-circuited via the error
// flag rather than by substituting a zero value into the comparison).
package vm

import (
	"fmt"
	"regexp"
	"sync"

	"netwatch/internal/filter/compiler"
	"netwatch/internal/filter/parser"
	"netwatch/pkg/netwatch/event"
)

// valueKind tags a VM stack value.
type valueKind uint8

const (
	kindBool valueKind = iota
	kindNumber
	kindString
)

// value is a tagged stack slot. The VM never mixes representations
// silently; comparisons across kinds resolve to false rather than
// coercing, per the type-mismatch-is-false rule.
type value struct {
	kind valueKind
	b    bool
	n    int64
	s    string
}

func boolValue(b bool) value  { return value{kind: kindBool, b: b} }
func numValue(n int64) value  { return value{kind: kindNumber, n: n} }
func strValue(s string) value { return value{kind: kindString, s: s} }

func (v value) truthy() bool {
	switch v.kind {
	case kindBool:
		return v.b
	case kindNumber:
		return v.n != 0
	case kindString:
		return v.s != ""
	default:
		return false
	}
}

// VM evaluates compiled Bytecode against events. A VM is not safe for
// concurrent Eval calls that share a Profile; callers that evaluate from
// multiple goroutines should use one VM per goroutine or accept profile
// contention, matching how the teacher's churn collector is used.
type VM struct {
	regexes *regexCache
	Profile *Profile
}

// New returns a VM with its own regex cache and, if profiling is
// requested, an empty Profile.
func New(profiling bool) *VM {
	v := &VM{regexes: newRegexCache()}
	if profiling {
		v.Profile = newProfile()
	}
	return v
}

// maxStack bounds pathological bytecode (e.g. a future bug emitting
// unbalanced pushes) from growing the evaluation stack unboundedly.
const maxStack = 256

// Eval runs bc against e and returns the boolean result of the top-level
// expression. bc must come from compiler.Compile on a valid AST; Eval
// panics only on a malformed Bytecode (stack underflow, out-of-range
// operand), which indicates a compiler bug, not a runtime condition.
func (v *VM) Eval(bc *compiler.Bytecode, e *event.Event) bool {
	stack := make([]value, 0, 8)
	// errored is the "error flag" the spec calls for: once a field
	// extraction can't resolve against e's payload kind, the whole
	// expression's result is forced to false at every return point,
	// no matter what the rest of the bytecode computes with the
	// placeholder value pushed in its place.
	errored := false
	push := func(val value) {
		if len(stack) >= maxStack {
			panic(fmt.Sprintf("filter vm: stack overflow (limit %d)", maxStack))
		}
		stack = append(stack, val)
	}
	pop := func() value {
		if len(stack) == 0 {
			panic("filter vm: stack underflow")
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top
	}

	// A short-circuit jump can skip the OpPushField that reads a missing
	// field, so every field the bytecode references is resolved once up
	// front; any miss makes the whole expression false.
	for _, instr := range bc.Instrs {
		if instr.Op == compiler.OpPushField {
			if _, ok := extractField(e, parser.FieldID(instr.Operand)); !ok {
				return false
			}
		}
	}

	pc := 0
	for pc < len(bc.Instrs) {
		instr := bc.Instrs[pc]
		start := v.profileStart()

		switch instr.Op {
		case compiler.OpPushField:
			val, ok := extractField(e, parser.FieldID(instr.Operand))
			if !ok {
				errored = true
			}
			push(val)
		case compiler.OpPushString:
			push(strValue(bc.Strings[instr.Operand]))
		case compiler.OpPushNumber:
			push(numValue(instr.Operand))
		case compiler.OpPop:
			pop()
		case compiler.OpEQ, compiler.OpNE, compiler.OpLT, compiler.OpGT, compiler.OpLE, compiler.OpGE:
			right := pop()
			left := pop()
			push(boolValue(compare(left, right, instr.Op)))
		case compiler.OpMatch, compiler.OpNMatch:
			right := pop()
			left := pop()
			push(boolValue(v.matches(left, right, instr.Op == compiler.OpNMatch)))
		case compiler.OpIn:
			n := int(instr.Operand)
			items := make([]value, n)
			for i := n - 1; i >= 0; i-- {
				items[i] = pop()
			}
			needle := pop()
			found := false
			for _, item := range items {
				if compare(needle, item, compiler.OpEQ) {
					found = true
					break
				}
			}
			push(boolValue(found))
		case compiler.OpNot:
			push(boolValue(!pop().truthy()))
		case compiler.OpAnd:
			right := pop()
			left := pop()
			push(boolValue(left.truthy() && right.truthy()))
		case compiler.OpOr:
			right := pop()
			left := pop()
			push(boolValue(left.truthy() || right.truthy()))
		case compiler.OpJump:
			pc += int(instr.Operand)
			v.profileEnd(instr.Op, start)
			continue
		case compiler.OpJumpIfFalse:
			if !stack[len(stack)-1].truthy() {
				pc += int(instr.Operand)
				v.profileEnd(instr.Op, start)
				continue
			}
		case compiler.OpJumpIfTrue:
			if stack[len(stack)-1].truthy() {
				pc += int(instr.Operand)
				v.profileEnd(instr.Op, start)
				continue
			}
		case compiler.OpReturn:
			v.profileEnd(instr.Op, start)
			if errored {
				return false
			}
			if len(stack) == 0 {
				return false
			}
			return stack[len(stack)-1].truthy()
		case compiler.OpNop:
			// no-op
		default:
			panic(fmt.Sprintf("filter vm: unknown opcode %v", instr.Op))
		}

		v.profileEnd(instr.Op, start)
		pc++
	}
	if errored {
		return false
	}
	if len(stack) == 0 {
		return false
	}
	return stack[len(stack)-1].truthy()
}

// compare implements the type-mismatch-is-false rule: operands of
// differing kinds never compare equal/ordered, they just compare false.
func compare(left, right value, op compiler.Opcode) bool {
	if left.kind != right.kind {
		return op == compiler.OpNE
	}
	var c int
	switch left.kind {
	case kindNumber:
		c = cmpInt64(left.n, right.n)
	case kindString:
		c = cmpString(left.s, right.s)
	case kindBool:
		c = cmpBool(left.b, right.b)
	}
	switch op {
	case compiler.OpEQ:
		return c == 0
	case compiler.OpNE:
		return c != 0
	case compiler.OpLT:
		return c < 0
	case compiler.OpGT:
		return c > 0
	case compiler.OpLE:
		return c <= 0
	case compiler.OpGE:
		return c >= 0
	default:
		return false
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a && b {
		return -1
	}
	return 1
}

// matches evaluates =~ / !~ against a regex compiled from the right-hand
// operand. A non-string operand on either side is a type mismatch and
// evaluates false, matching compare's rule.
func (v *VM) matches(left, right value, negate bool) bool {
	if left.kind != kindString || right.kind != kindString {
		return negate
	}
	re, err := v.regexes.get(right.s)
	if err != nil {
		return false
	}
	m := re.MatchString(left.s)
	if negate {
		return !m
	}
	return m
}

// extractField reads the named field out of e. The second return value
// is false when id names a protocol-scoped field for a payload kind e
// does not carry (e.g. nl.route.gateway on a link event), or an
// unrecognized field id; Eval raises its error flag in that case, which
// forces false for the whole expression rather than letting a
// substituted zero value participate in an ordinary comparison.
func extractField(e *event.Event, id parser.FieldID) (value, bool) {
	switch id {
	case parser.FieldInterface:
		return strValue(e.Interface), true
	case parser.FieldMessageType:
		return numValue(int64(e.MessageType)), true
	case parser.FieldEventType:
		return numValue(int64(e.EventType)), true
	case parser.FieldNamespace:
		return strValue(e.Namespace), true
	case parser.FieldTimestamp:
		return numValue(e.Timestamp), true
	case parser.FieldSequence:
		return numValue(int64(e.Sequence)), true
	case parser.FieldLinkIfname:
		if e.Kind != event.KindLink {
			return value{}, false
		}
		return strValue(e.Link.Ifname), true
	case parser.FieldAddrFamily:
		if e.Kind != event.KindAddress {
			return value{}, false
		}
		return numValue(int64(e.Addr.Family)), true
	case parser.FieldRouteGateway:
		if e.Kind != event.KindRoute {
			return value{}, false
		}
		return strValue(e.Route.Gateway), true
	default:
		// FieldUnknown, or any id the VM predates.
		return value{}, false
	}
}

// regexCache memoizes compiled patterns. Entries are never evicted: the
// filter language's pattern set is bounded by the operator's configured
// rules, not by event traffic, so unbounded growth in practice means a
// handful of entries.
type regexCache struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

func newRegexCache() *regexCache {
	return &regexCache{patterns: make(map[string]*regexp.Regexp)}
}

func (c *regexCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.patterns[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	c.patterns[pattern] = re
	return re, nil
}
