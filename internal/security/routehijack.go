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

import (
	"sync"

	"netwatch/pkg/netwatch/event"
)

// RouteHijackFinding reports a default route whose gateway changed from
// a previously observed value.
type RouteHijackFinding struct {
	Family     uint8
	OldGateway string
	NewGateway string
}

// RouteHijackDetector implements the narrow default-route predicate
// chosen to resolve the open question in §9: track the gateway of the
// default route (DstLen==0) per address family, and flag any route
// addition that changes it. This deliberately does not attempt RFC1918
// prefix or non-default route analysis, since no concrete pattern set
// was specified.
type RouteHijackDetector struct {
	mu       sync.Mutex
	gateways map[uint8]string
}

// NewRouteHijackDetector returns an empty detector.
func NewRouteHijackDetector() *RouteHijackDetector {
	return &RouteHijackDetector{gateways: make(map[uint8]string)}
}

// Observe records e if it is a default-route addition and reports a
// finding when the gateway differs from the last one seen for that
// address family. The first observation for a family only seeds state
// and never fires, since there is nothing to compare against yet.
func (d *RouteHijackDetector) Observe(e *event.Event) (RouteHijackFinding, bool) {
	if e.Kind != event.KindRoute || e.Route.DstLen != 0 {
		return RouteHijackFinding{}, false
	}
	gw := e.Route.Gateway
	if gw == "" {
		return RouteHijackFinding{}, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	prev, seen := d.gateways[e.Route.Family]
	d.gateways[e.Route.Family] = gw
	if seen && prev != gw {
		return RouteHijackFinding{Family: e.Route.Family, OldGateway: prev, NewGateway: gw}, true
	}
	return RouteHijackFinding{}, false
}
