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
	"testing"
	"time"

	"netwatch/pkg/netwatch/event"
)

func Test_PromiscuousDetector_FiresOnRisingEdgeOnly(t *testing.T) {
	d := NewPromiscuousDetector()
	e := &event.Event{Kind: event.KindLink, Interface: "eth0", Link: event.Link{Ifindex: 2, Flags: ifPromisc}}

	if _, ok := d.Observe(e); !ok {
		t.Fatalf("expected first promiscuous-on observation to fire")
	}
	if _, ok := d.Observe(e); ok {
		t.Fatalf("expected repeated promiscuous-on events not to re-fire")
	}

	e.Link.Flags = 0
	d.Observe(e)
	if _, ok := d.Observe(e); ok {
		t.Fatalf("expected promiscuous-off to not fire")
	}

	e.Link.Flags = ifPromisc
	if _, ok := d.Observe(e); !ok {
		t.Fatalf("expected the second rising edge to fire again")
	}
}

func Test_NeighborFloodDetector_FiresPastThreshold(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	d := NewNeighborFloodDetectorWithClock(10, 3, func() time.Time { return clock })

	var fired int
	for i := 0; i < 5; i++ {
		if _, ok := d.Observe(&event.Event{Kind: event.KindNeighbor}); ok {
			fired++
		}
		clock = clock.Add(time.Second)
	}
	if fired == 0 {
		t.Fatalf("expected the flood detector to fire at least once past threshold")
	}
}

func Test_NeighborFloodDetector_WindowExpiryDropsOldEntries(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	d := NewNeighborFloodDetectorWithClock(5, 10, func() time.Time { return clock })

	for i := 0; i < 3; i++ {
		d.Observe(&event.Event{Kind: event.KindNeighbor})
	}
	clock = clock.Add(20 * time.Second)
	if _, ok := d.Observe(&event.Event{Kind: event.KindNeighbor}); ok {
		t.Fatalf("expected stale entries to have expired, window should be far below threshold")
	}
}

func Test_InterfaceStormDetector_PerInterfaceIndependence(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	d := NewInterfaceStormDetectorWithClock(10, 2, func() time.Time { return clock })

	d.Observe(&event.Event{Interface: "eth0"})
	d.Observe(&event.Event{Interface: "eth0"})
	if _, ok := d.Observe(&event.Event{Interface: "eth0"}); !ok {
		t.Fatalf("expected eth0's 3rd event within the window to cross the threshold")
	}
	if _, ok := d.Observe(&event.Event{Interface: "eth1"}); ok {
		t.Fatalf("expected eth1's own counter to be independent of eth0's")
	}
}

func Test_InterfaceStormDetector_ResetsEveryWindow(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	d := NewInterfaceStormDetectorWithClock(5, 2, func() time.Time { return clock })

	d.Observe(&event.Event{Interface: "eth0"})
	d.Observe(&event.Event{Interface: "eth0"})
	clock = clock.Add(10 * time.Second)
	if _, ok := d.Observe(&event.Event{Interface: "eth0"}); ok {
		t.Fatalf("expected the counter to have reset after the window elapsed")
	}
}

func Test_RouteHijackDetector_FlagsDefaultGatewayChange(t *testing.T) {
	d := NewRouteHijackDetector()

	seed := &event.Event{Kind: event.KindRoute, Route: event.Route{Family: 2, DstLen: 0, Gateway: "10.0.0.1"}}
	if _, ok := d.Observe(seed); ok {
		t.Fatalf("expected the first default-route observation to only seed state")
	}

	changed := &event.Event{Kind: event.KindRoute, Route: event.Route{Family: 2, DstLen: 0, Gateway: "10.0.0.99"}}
	finding, ok := d.Observe(changed)
	if !ok {
		t.Fatalf("expected a gateway change to fire")
	}
	if finding.OldGateway != "10.0.0.1" || finding.NewGateway != "10.0.0.99" {
		t.Fatalf("unexpected finding: %+v", finding)
	}

	if _, ok := d.Observe(changed); ok {
		t.Fatalf("expected no re-fire when the gateway repeats unchanged")
	}
}

func Test_RouteHijackDetector_IgnoresNonDefaultRoutes(t *testing.T) {
	d := NewRouteHijackDetector()
	specific := &event.Event{Kind: event.KindRoute, Route: event.Route{Family: 2, DstLen: 24, Gateway: "10.0.0.1"}}
	if _, ok := d.Observe(specific); ok {
		t.Fatalf("expected non-default routes to be ignored entirely")
	}
}

func Test_SuspiciousInterfaceDetector_MatchesDenylistOnce(t *testing.T) {
	d := NewSuspiciousInterfaceDetector([]string{"rogue", "evil"})

	f, ok := d.Observe(&event.Event{Interface: "rogue-ap0"})
	if !ok || f.Matched != "rogue" {
		t.Fatalf("expected a match on the denylisted substring, got %+v ok=%v", f, ok)
	}
	if _, ok := d.Observe(&event.Event{Interface: "rogue-ap0"}); ok {
		t.Fatalf("expected no re-fire for an already-flagged interface")
	}
	if _, ok := d.Observe(&event.Event{Interface: "eth0"}); ok {
		t.Fatalf("expected a clean interface name not to match")
	}
}

func Test_Detectors_IndependentTriggering(t *testing.T) {
	d := New(Config{
		NeighborFloodWindowSec:  10,
		NeighborFloodThreshold:  100,
		InterfaceStormWindowSec: 10,
		InterfaceStormThreshold: 100,
		SuspiciousDenylist:      []string{"rogue"},
	})

	f := d.Observe(&event.Event{
		Kind:      event.KindLink,
		Interface: "rogue0",
		Link:      event.Link{Ifindex: 1, Flags: ifPromisc},
	})
	if f.Promiscuous == nil {
		t.Fatalf("expected promiscuous finding")
	}
	if f.SuspiciousInterface == nil {
		t.Fatalf("expected suspicious-interface finding alongside promiscuous")
	}
	if f.NeighborFlood != nil || f.InterfaceStorm != nil || f.RouteHijack != nil {
		t.Fatalf("did not expect the other detectors to fire on this event")
	}
}
