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

// Package glue wires an EventSource into the Event Processor and fans
// each processed event out to the hook, alert, correlation, pattern and
// security engines. Flag parsing and signal handling are left to the
// caller (cmd/netwatchd).
package glue

import (
	"netwatch/internal/alerts"
	"netwatch/internal/config"
	"netwatch/internal/correlation"
	"netwatch/internal/hooks"
	"netwatch/internal/logging"
	"netwatch/internal/pipeline/processor"
	"netwatch/internal/ratestate"
	"netwatch/internal/security"
	"netwatch/pkg/netwatch/event"
)

// EventSource is the ingestion side contract of §6: a monotonic stream
// of already-decoded Event records, pulled one at a time through Next
// until the source itself is done (e.g. its underlying netlink socket
// or simulation closed); Run loops calling Submit for each event it
// receives.
type EventSource interface {
	// Next blocks until the next Event is available, or returns
	// ok=false when the source is exhausted/disconnected.
	Next() (*event.Event, bool)
}

// Config bundles every engine's construction knobs plus the rule set
// to register into the hook and alert tables at startup.
type Config struct {
	Processor   processor.Config
	MaxHooks    int
	HistoryCap  int
	Concurrency int
	Rules       config.Rules
	Security    security.Config
	Correlation []correlation.Rule
	Patterns    []PatternConfig
	StateMirror *ratestate.Mirror
}

// PatternConfig registers one frequency pattern detector.
type PatternConfig struct {
	WindowSec    int
	MinFrequency uint64
}

// System bundles every wired engine and the processor that drives them.
type System struct {
	Processor   *processor.Processor
	Hooks       *hooks.Table
	Alerts      *alerts.Table
	Correlation *correlation.Engine
	Patterns    []*correlation.PatternDetector
	Security    *security.Detectors

	handlerID int
}

// Build constructs every engine from cfg, registers cfg.Rules and
// cfg.Correlation, and wires a single processor handler that fans each
// processed event out to all of them. It does not start the processor;
// call System.Processor.Start() once the caller is ready to begin
// draining events.
func Build(cfg Config) (*System, error) {
	proc := processor.New(cfg.Processor)

	hookTable := hooks.New(cfg.MaxHooks, cfg.Concurrency)
	if cfg.StateMirror != nil {
		hookTable.SetStateMirror(cfg.StateMirror)
	}
	for _, r := range cfg.Rules.Hooks {
		if err := hookTable.Register(r); err != nil {
			return nil, err
		}
	}

	alertTable := alerts.New(cfg.HistoryCap)
	for _, r := range cfg.Rules.Alerts {
		if err := alertTable.Register(r); err != nil {
			return nil, err
		}
	}

	corrEngine := correlation.New()
	for _, r := range cfg.Correlation {
		if err := corrEngine.Register(r); err != nil {
			return nil, err
		}
	}

	detectors := security.New(cfg.Security)

	patterns := make([]*correlation.PatternDetector, 0, len(cfg.Patterns))
	for _, p := range cfg.Patterns {
		patterns = append(patterns, correlation.NewPatternDetector(p.WindowSec, p.MinFrequency))
	}

	sys := &System{
		Processor:   proc,
		Hooks:       hookTable,
		Alerts:      alertTable,
		Correlation: corrEngine,
		Patterns:    patterns,
		Security:    detectors,
	}

	sys.handlerID = proc.RegisterHandler(sys.dispatch)
	return sys, nil
}

// dispatch is the single processor handler fanning e out to every
// engine. Each engine owns its own locking, so the fan-out here is
// sequential but none of it blocks on another engine's internals.
func (s *System) dispatch(e *event.Event) {
	s.Hooks.OnEvent(e)
	if triggered := s.Alerts.OnEvent(e); len(triggered) > 0 {
		for _, inst := range triggered {
			logging.Infof("alerts: rule %q triggered instance %d (severity %s)", inst.RuleName, inst.ID, inst.Severity)
		}
	}
	if results := s.Correlation.Process(e); len(results) > 0 {
		for _, r := range results {
			logging.Infof("correlation: rule %q emitted %s (%d events)", r.RuleName, r.ID, len(r.EventSeqs))
		}
	}
	for _, pd := range s.Patterns {
		if m, ok := pd.Observe(e); ok {
			logging.Infof("correlation: pattern on interface %q event type %d reached %d events (%.2f/s)", m.Interface, m.EventType, m.Count, m.EventsPerSecond)
		}
	}
	if findings := s.Security.Observe(e); findings.Any() {
		logSecurityFindings(findings)
	}
}

func logSecurityFindings(f security.Findings) {
	if f.Promiscuous != nil {
		logging.Warnf("security: interface %q entered promiscuous mode", f.Promiscuous.Interface)
	}
	if f.NeighborFlood != nil {
		logging.Warnf("security: neighbor event flood (%d in %ds)", f.NeighborFlood.Count, f.NeighborFlood.WindowSec)
	}
	if f.InterfaceStorm != nil {
		logging.Warnf("security: interface %q event storm (%d events)", f.InterfaceStorm.Interface, f.InterfaceStorm.Count)
	}
	if f.RouteHijack != nil {
		logging.Warnf("security: default route gateway changed %s -> %s", f.RouteHijack.OldGateway, f.RouteHijack.NewGateway)
	}
	if f.SuspiciousInterface != nil {
		logging.Warnf("security: interface %q matched denylist term %q", f.SuspiciousInterface.Interface, f.SuspiciousInterface.Matched)
	}
}

// Run drives src, submitting every decoded event to the processor,
// until src is exhausted. It is meant to run in its own goroutine.
func Run(src EventSource, sys *System) {
	for {
		e, ok := src.Next()
		if !ok {
			return
		}
		sys.Processor.Submit(e)
	}
}
