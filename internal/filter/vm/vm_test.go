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

package vm

import (
	"testing"

	"netwatch/internal/filter/compiler"
	"netwatch/internal/filter/parser"
	"netwatch/pkg/netwatch/event"
)

func mustCompile(t *testing.T, expr string) *parser.Node {
	t.Helper()
	r := parser.Parse(expr)
	if !r.Valid {
		t.Fatalf("parse %q: %v", expr, r.Error)
	}
	return r.AST
}

func eval(t *testing.T, expr string, e *event.Event) bool {
	t.Helper()
	ast := mustCompile(t, expr)
	bc, err := compiler.Compile(ast)
	if err != nil {
		t.Fatalf("compile %q: %v", expr, err)
	}
	return New(false).Eval(bc, e)
}

func Test_Eval_SimpleInterfaceMatch(t *testing.T) {
	e := &event.Event{Interface: "eth0"}
	if !eval(t, `interface == "eth0"`, e) {
		t.Fatalf("expected eth0 to match")
	}
	if eval(t, `interface == "eth1"`, e) {
		t.Fatalf("expected eth1 not to match")
	}
}

func Test_Eval_AndShortCircuit(t *testing.T) {
	e := &event.Event{Interface: "eth0", MessageType: 16}
	if !eval(t, `interface == "eth0" AND message_type == 16`, e) {
		t.Fatalf("expected AND of two true clauses to be true")
	}
	if eval(t, `interface == "eth0" AND message_type == 17`, e) {
		t.Fatalf("expected AND with one false clause to be false")
	}
}

func Test_Eval_OrShortCircuit(t *testing.T) {
	e := &event.Event{Interface: "eth1", MessageType: 16}
	if !eval(t, `interface == "eth0" OR message_type == 16`, e) {
		t.Fatalf("expected OR with one true clause to be true")
	}
	if eval(t, `interface == "eth0" OR message_type == 17`, e) {
		t.Fatalf("expected OR of two false clauses to be false")
	}
}

func Test_Eval_NotNegates(t *testing.T) {
	e := &event.Event{Interface: "eth0"}
	if eval(t, `NOT (interface == "eth0")`, e) {
		t.Fatalf("expected NOT of a true clause to be false")
	}
	if !eval(t, `NOT (interface == "eth1")`, e) {
		t.Fatalf("expected NOT of a false clause to be true")
	}
}

func Test_Eval_InMembership(t *testing.T) {
	e := &event.Event{MessageType: 17}
	if !eval(t, `message_type IN [16, 17, 18]`, e) {
		t.Fatalf("expected 17 to be in the list")
	}
	if eval(t, `message_type IN [16, 18]`, e) {
		t.Fatalf("expected 17 not to be in the list")
	}
}

func Test_Eval_RegexMatch(t *testing.T) {
	e := &event.Event{Interface: "eth0"}
	if !eval(t, `interface =~ "^eth[0-9]+$"`, e) {
		t.Fatalf("expected eth0 to match the regex")
	}
	if !eval(t, `interface !~ "^wlan[0-9]+$"`, e) {
		t.Fatalf("expected eth0 not to match the wlan regex, so !~ is true")
	}
}

func Test_Eval_MissingOptionalFieldIsFalseNotError(t *testing.T) {
	e := &event.Event{Kind: event.KindAddress}
	if eval(t, `nl.link.ifname == "eth0"`, e) {
		t.Fatalf("expected a link-only field on a non-link event to compare false")
	}
}

// Test_Eval_MissingOptionalFieldForcesFalseOnNotEqual guards against the
// zero-value-substitution bug: a missing nl.route.gateway must not let
// != spuriously compare a substituted empty string against a non-empty
// literal and come back true.
func Test_Eval_MissingOptionalFieldForcesFalseOnNotEqual(t *testing.T) {
	e := &event.Event{Kind: event.KindLink}
	if eval(t, `nl.route.gateway != "1.2.3.4"`, e) {
		t.Fatalf("expected a route-only field on a non-route event to force the whole expression false, even under !=")
	}
}

// Test_Eval_MissingOptionalFieldForcesFalseUnderOr proves the error flag
// forces the entire expression false even when OR'd with an otherwise
// true clause.
func Test_Eval_MissingOptionalFieldForcesFalseUnderOr(t *testing.T) {
	e := &event.Event{Kind: event.KindLink, Interface: "eth0"}
	if eval(t, `interface == "eth0" OR nl.route.gateway != "1.2.3.4"`, e) {
		t.Fatalf("expected a missing-field branch to force the whole expression false even OR'd with a true clause")
	}
}

// Test_Eval_MissingOptionalFieldForcesFalseUnderAnd covers a missing
// field nested under AND, paired with an otherwise-true clause.
func Test_Eval_MissingOptionalFieldForcesFalseUnderAnd(t *testing.T) {
	e := &event.Event{Kind: event.KindLink, Interface: "eth0"}
	if eval(t, `interface == "eth0" AND nl.route.gateway == "1.2.3.4"`, e) {
		t.Fatalf("expected a missing-field branch under AND to force the whole expression false")
	}
	if eval(t, `interface == "eth0" AND NOT (nl.route.gateway == "1.2.3.4")`, e) {
		t.Fatalf("expected a missing-field branch under AND/NOT to still force the whole expression false")
	}
}

func Test_Eval_TypeMismatchIsFalse(t *testing.T) {
	e := &event.Event{MessageType: 16}
	if eval(t, `message_type == "16"`, e) {
		t.Fatalf("expected a number field compared against a string literal to be false, not coerced")
	}
}

func Test_Eval_UnknownFieldAlwaysFalse(t *testing.T) {
	e := &event.Event{Interface: "eth0"}
	if eval(t, `bogus_field == "x"`, e) {
		t.Fatalf("expected an unknown field to always evaluate false")
	}
}

// Test_Eval_OptimizedMatchesUnoptimized proves invariant 7: the
// optimizer's rewrites never change what a filter decides.
func Test_Eval_OptimizedMatchesUnoptimized(t *testing.T) {
	exprs := []string{
		`interface == "eth0"`,
		`interface == "eth0" AND message_type == 16`,
		`interface == "eth0" OR message_type == 17`,
		`NOT (interface == "eth0" AND message_type == 16)`,
		`message_type IN [16, 17, 18] AND interface =~ "eth.*"`,
		`message_type == 16 AND message_type == 16`,
		`interface == "eth0" OR interface == "eth1" OR interface == "eth2"`,
	}
	events := []*event.Event{
		{Interface: "eth0", MessageType: 16},
		{Interface: "eth1", MessageType: 17},
		{Interface: "wlan0", MessageType: 99},
	}
	for _, expr := range exprs {
		ast := mustCompile(t, expr)
		unopt, err := compiler.CompileUnoptimized(ast)
		if err != nil {
			t.Fatalf("compile unoptimized %q: %v", expr, err)
		}
		opt, err := compiler.Compile(ast)
		if err != nil {
			t.Fatalf("compile optimized %q: %v", expr, err)
		}
		v := New(false)
		for _, e := range events {
			want := v.Eval(unopt, e)
			got := v.Eval(opt, e)
			if want != got {
				t.Fatalf("expr %q on event %+v: unoptimized=%v optimized=%v", expr, e, want, got)
			}
		}
	}
}

func Test_Eval_RegexCacheReusesCompiledPattern(t *testing.T) {
	v := New(false)
	e := &event.Event{Interface: "eth0"}
	ast := mustCompile(t, `interface =~ "^eth[0-9]+$"`)
	bc, err := compiler.Compile(ast)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	v.Eval(bc, e)
	v.Eval(bc, e)
	if len(v.regexes.patterns) != 1 {
		t.Fatalf("expected exactly one cached compiled pattern, got %d", len(v.regexes.patterns))
	}
}

func Test_Eval_ProfileRecordsPerOpcodeStats(t *testing.T) {
	v := New(true)
	e := &event.Event{Interface: "eth0"}
	ast := mustCompile(t, `interface == "eth0"`)
	bc, err := compiler.Compile(ast)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	v.Eval(bc, e)
	snap := v.Profile.Snapshot()
	if len(snap) == 0 {
		t.Fatalf("expected profiling to record at least one opcode")
	}
	if s, ok := snap[compiler.OpEQ]; !ok || s.Count != 1 {
		t.Fatalf("expected OpEQ to have executed exactly once, got %+v", snap[compiler.OpEQ])
	}
}
