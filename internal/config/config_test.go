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

package config

import (
	"strings"
	"testing"

	"netwatch/internal/hooks"
)

func Test_Parse_HookRuleWithExecAction(t *testing.T) {
	doc := `
rules:
  - name: promisc-alert
    condition: 'interface == "eth0"'
    enabled: true
    severity: warning
    action:
      type: exec
      script: /usr/local/bin/notify.sh
      timeout_ms: 2000
    rate_limit:
      count: 5
      window_sec: 60
    suppress_sec: 30
`
	rules, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rules.Hooks) != 1 {
		t.Fatalf("expected one hook rule, got %d", len(rules.Hooks))
	}
	r := rules.Hooks[0]
	if r.Name != "promisc-alert" || r.Severity != hooks.SeverityWarning {
		t.Fatalf("unexpected rule: %+v", r)
	}
	if r.Action.Kind != hooks.ActionExec || r.Action.Exec.Script != "/usr/local/bin/notify.sh" {
		t.Fatalf("unexpected action: %+v", r.Action)
	}
	if r.RateLimitCount != 5 || r.RateLimitWindowSec != 60 || r.SuppressSec != 30 {
		t.Fatalf("unexpected limits: %+v", r)
	}
}

func Test_Parse_AlertRuleHasNoActionBlock(t *testing.T) {
	doc := `
rules:
  - name: link-flap
    condition: 'event_type == 1'
    kind: alert
    severity: critical
`
	rules, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rules.Alerts) != 1 || rules.Alerts[0].Name != "link-flap" {
		t.Fatalf("unexpected alerts: %+v", rules.Alerts)
	}
}

func Test_Parse_RejectsUnknownKey(t *testing.T) {
	doc := `
rules:
  - name: bad
    condition: 'interface == "eth0"'
    action:
      type: log
      path: /tmp/x.log
    totally_unknown_field: 1
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatalf("expected an unknown-key parse error")
	}
}

func Test_Parse_RejectsMissingCondition(t *testing.T) {
	doc := `
rules:
  - name: bad
    action:
      type: log
      path: /tmp/x.log
`
	_, err := Parse([]byte(doc))
	if err == nil || !strings.Contains(err.Error(), "condition") {
		t.Fatalf("expected a missing-condition error, got %v", err)
	}
}

func Test_Parse_RejectsUnknownActionType(t *testing.T) {
	doc := `
rules:
  - name: bad
    condition: 'interface == "eth0"'
    action:
      type: carrier-pigeon
`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatalf("expected an unknown-action-type error")
	}
}
