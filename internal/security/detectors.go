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

package security

import "netwatch/pkg/netwatch/event"

// Config configures the five independent heuristic detectors.
type Config struct {
	NeighborFloodWindowSec  int
	NeighborFloodThreshold  int
	InterfaceStormWindowSec int
	InterfaceStormThreshold int
	SuspiciousDenylist      []string
}

// Findings collects whatever subset of detectors fired for a single
// observed event. Each field is independently populated; several may
// be set at once (e.g. a promiscuous interface with a denylisted name).
type Findings struct {
	Promiscuous         *PromiscuousFinding
	NeighborFlood       *NeighborFloodFinding
	InterfaceStorm      *InterfaceStormFinding
	RouteHijack         *RouteHijackFinding
	SuspiciousInterface *SuspiciousInterfaceFinding
}

// Any reports whether at least one detector fired.
func (f Findings) Any() bool {
	return f.Promiscuous != nil || f.NeighborFlood != nil || f.InterfaceStorm != nil ||
		f.RouteHijack != nil || f.SuspiciousInterface != nil
}

// Detectors bundles the five §4.L heuristics behind one Observe call.
// Each detector owns its own mutex (see the individual files); nothing
// here serializes across them, so triggering one never blocks or gates
// another, matching the independence requirement.
type Detectors struct {
	promiscuous *PromiscuousDetector
	neighbor    *NeighborFloodDetector
	ifstorm     *InterfaceStormDetector
	routeHijack *RouteHijackDetector
	suspicious  *SuspiciousInterfaceDetector
}

// New builds the full detector bundle from cfg.
func New(cfg Config) *Detectors {
	return &Detectors{
		promiscuous: NewPromiscuousDetector(),
		neighbor:    NewNeighborFloodDetector(cfg.NeighborFloodWindowSec, cfg.NeighborFloodThreshold),
		ifstorm:     NewInterfaceStormDetector(cfg.InterfaceStormWindowSec, cfg.InterfaceStormThreshold),
		routeHijack: NewRouteHijackDetector(),
		suspicious:  NewSuspiciousInterfaceDetector(cfg.SuspiciousDenylist),
	}
}

// Observe runs e through every detector and returns whichever findings
// fired. A miss on one detector never suppresses another.
func (d *Detectors) Observe(e *event.Event) Findings {
	var f Findings
	if v, ok := d.promiscuous.Observe(e); ok {
		f.Promiscuous = &v
	}
	if v, ok := d.neighbor.Observe(e); ok {
		f.NeighborFlood = &v
	}
	if v, ok := d.ifstorm.Observe(e); ok {
		f.InterfaceStorm = &v
	}
	if v, ok := d.routeHijack.Observe(e); ok {
		f.RouteHijack = &v
	}
	if v, ok := d.suspicious.Observe(e); ok {
		f.SuspiciousInterface = &v
	}
	return f
}
