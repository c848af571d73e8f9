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

// Package config loads the abstract rule config object of §6 from YAML:
// name, condition, enabled, an action target, and optional rate_limit /
// suppress_sec blocks. Unknown keys are rejected rather than silently
// ignored.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"netwatch/internal/alerts"
	"netwatch/internal/hooks"
)

// rateLimit is the optional {count, window_sec} block.
type rateLimit struct {
	Count     int `yaml:"count"`
	WindowSec int `yaml:"window_sec"`
}

// action is the tagged action block. Only the fields matching Type are
// read; the rest are ignored (but still subject to unknown-key
// rejection against this same struct, since yaml.v3's KnownFields
// option is enforced at the document's top level as well).
type action struct {
	Type string `yaml:"type"`

	// exec
	Script    string `yaml:"script"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Capture   bool   `yaml:"capture"`
	Async     bool   `yaml:"async"`

	// log
	Path   string `yaml:"path"`
	Append bool   `yaml:"append"`

	// webhook
	URL        string `yaml:"url"`
	Method     string `yaml:"method"`
	Require2xx bool   `yaml:"require_2xx"`
}

// ruleDoc is one entry in rules.yaml's top-level `rules:` list.
type ruleDoc struct {
	Name        string     `yaml:"name"`
	Condition   string     `yaml:"condition"`
	Enabled     bool       `yaml:"enabled"`
	Severity    string     `yaml:"severity"`
	Action      *action    `yaml:"action"`
	RateLimit   *rateLimit `yaml:"rate_limit"`
	SuppressSec int        `yaml:"suppress_sec"`
	Kind        string     `yaml:"kind"` // "hook" (default) or "alert"
}

// document is the top-level rules.yaml shape.
type document struct {
	Rules []ruleDoc `yaml:"rules"`
}

// Rules is the parsed, split rule set: hook rules drive internal/hooks,
// alert rules drive internal/alerts. A rule with kind: alert must not
// carry an action block, since an alert's action is always to record
// an Instance.
type Rules struct {
	Hooks  []hooks.Rule
	Alerts []alerts.Rule
}

// Load reads and parses the rule file at path.
func Load(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses rule-file YAML content. Unknown top-level and per-rule
// keys are rejected via yaml.v3's strict decoder mode.
func Parse(data []byte) (Rules, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return Rules{}, fmt.Errorf("config: parse error: %w", err)
	}

	var out Rules
	for _, rd := range doc.Rules {
		if rd.Name == "" {
			return Rules{}, fmt.Errorf("config: rule with empty name")
		}
		if rd.Condition == "" {
			return Rules{}, fmt.Errorf("config: rule %q: condition is required", rd.Name)
		}

		sev, err := parseSeverity(rd.Severity)
		if err != nil {
			return Rules{}, fmt.Errorf("config: rule %q: %w", rd.Name, err)
		}

		rlCount, rlWindow := 0, 0
		if rd.RateLimit != nil {
			rlCount, rlWindow = rd.RateLimit.Count, rd.RateLimit.WindowSec
		}

		switch rd.Kind {
		case "", "hook":
			if rd.Action == nil {
				return Rules{}, fmt.Errorf("config: hook rule %q: action is required", rd.Name)
			}
			act, err := parseAction(*rd.Action)
			if err != nil {
				return Rules{}, fmt.Errorf("config: rule %q: %w", rd.Name, err)
			}
			out.Hooks = append(out.Hooks, hooks.Rule{
				Name:               rd.Name,
				Condition:          rd.Condition,
				Enabled:            rd.Enabled,
				Severity:           sev,
				Action:             act,
				RateLimitCount:     rlCount,
				RateLimitWindowSec: rlWindow,
				SuppressSec:        rd.SuppressSec,
			})
		case "alert":
			if rd.Action != nil {
				return Rules{}, fmt.Errorf("config: alert rule %q: action is not allowed", rd.Name)
			}
			out.Alerts = append(out.Alerts, alerts.Rule{
				Name:               rd.Name,
				Condition:          rd.Condition,
				Enabled:            rd.Enabled,
				Severity:           sev,
				RateLimitCount:     rlCount,
				RateLimitWindowSec: rlWindow,
				SuppressSec:        rd.SuppressSec,
			})
		default:
			return Rules{}, fmt.Errorf("config: rule %q: unknown kind %q", rd.Name, rd.Kind)
		}
	}
	return out, nil
}

func parseSeverity(s string) (hooks.Severity, error) {
	switch s {
	case "", "info":
		return hooks.SeverityInfo, nil
	case "warning":
		return hooks.SeverityWarning, nil
	case "error":
		return hooks.SeverityError, nil
	case "critical":
		return hooks.SeverityCritical, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}

func parseAction(a action) (hooks.Action, error) {
	switch a.Type {
	case "exec":
		return hooks.Action{
			Kind: hooks.ActionExec,
			Exec: hooks.ExecAction{Script: a.Script, TimeoutMS: a.TimeoutMS, Capture: a.Capture, Async: a.Async},
		}, nil
	case "log":
		return hooks.Action{
			Kind: hooks.ActionLog,
			Log:  hooks.LogAction{Path: a.Path, Append: a.Append},
		}, nil
	case "webhook":
		return hooks.Action{
			Kind: hooks.ActionWebhook,
			Webhook: hooks.WebhookAction{
				URL:        a.URL,
				Method:     a.Method,
				TimeoutMS:  a.TimeoutMS,
				Require2xx: a.Require2xx,
			},
		}, nil
	default:
		return hooks.Action{}, fmt.Errorf("unknown action type %q", a.Type)
	}
}
