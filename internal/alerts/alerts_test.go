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

package alerts

import (
	"testing"
	"time"

	"netwatch/internal/hooks"
	"netwatch/pkg/netwatch/event"
)

func Test_Table_TriggerProducesActiveInstance(t *testing.T) {
	tbl := New(16)
	if err := tbl.Register(Rule{
		Name:      "link-down",
		Condition: `interface == "eth0"`,
		Enabled:   true,
		Severity:  hooks.SeverityError,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	triggered := tbl.OnEvent(&event.Event{Interface: "eth0", Sequence: 42})
	if len(triggered) != 1 {
		t.Fatalf("expected exactly one triggered instance, got %d", len(triggered))
	}
	if triggered[0].State != StateActive {
		t.Fatalf("expected a freshly triggered instance to be Active, got %v", triggered[0].State)
	}
	if triggered[0].EventSeq != 42 {
		t.Fatalf("expected the instance to reference the event by sequence, got %d", triggered[0].EventSeq)
	}
}

func Test_Table_AcknowledgeThenResolve(t *testing.T) {
	tbl := New(16)
	tbl.Register(Rule{Name: "r", Condition: `interface == "eth0"`, Enabled: true})
	triggered := tbl.OnEvent(&event.Event{Interface: "eth0"})
	id := triggered[0].ID

	if !tbl.Acknowledge(id, "oncall") {
		t.Fatalf("expected acknowledge to succeed on an Active instance")
	}
	if tbl.Acknowledge(id, "oncall") {
		t.Fatalf("expected a second acknowledge to fail (already Acknowledged)")
	}
	if !tbl.Resolve(id) {
		t.Fatalf("expected resolve to succeed from Acknowledged")
	}
	if tbl.Resolve(id) {
		t.Fatalf("expected a second resolve to fail (already Inactive)")
	}
}

func Test_Table_SuppressThenReactivate(t *testing.T) {
	tbl := New(16)
	tbl.Register(Rule{Name: "r", Condition: `interface == "eth0"`, Enabled: true})
	triggered := tbl.OnEvent(&event.Event{Interface: "eth0"})
	id := triggered[0].ID

	if !tbl.Suppress(id) {
		t.Fatalf("expected suppress to succeed on an Active instance")
	}
	if tbl.Acknowledge(id, "oncall") {
		t.Fatalf("expected acknowledge to fail on a Suppressed instance")
	}
	if !tbl.Reactivate(id) {
		t.Fatalf("expected reactivate to succeed on a Suppressed instance")
	}
	if !tbl.Acknowledge(id, "oncall") {
		t.Fatalf("expected acknowledge to succeed once reactivated to Active")
	}
}

func Test_Table_HistoryRingEvictsOldest(t *testing.T) {
	tbl := New(2)
	tbl.Register(Rule{Name: "r", Condition: `interface == "eth0"`, Enabled: true})

	for i := 0; i < 3; i++ {
		tbl.OnEvent(&event.Event{Interface: "eth0", Sequence: uint64(i)})
	}

	hist := tbl.History()
	if len(hist) != 2 {
		t.Fatalf("expected the history ring to cap at 2 entries, got %d", len(hist))
	}
	if hist[0].EventSeq != 1 || hist[1].EventSeq != 2 {
		t.Fatalf("expected the oldest entry (seq 0) to have been evicted, got %+v", hist)
	}
}

func Test_Table_SuppressionGatesTriggers(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	tbl := NewWithClock(16, func() time.Time { return clock })
	tbl.Register(Rule{
		Name:        "gated",
		Condition:   `interface == "eth0"`,
		Enabled:     true,
		SuppressSec: 10,
	})

	tbl.OnEvent(&event.Event{Interface: "eth0"})
	clock = clock.Add(5 * time.Second)
	triggered := tbl.OnEvent(&event.Event{Interface: "eth0"})
	if len(triggered) != 0 {
		t.Fatalf("expected the second trigger within the suppression window to be gated")
	}

	stats, _ := tbl.RuleStats("gated")
	if stats.Suppressed != 1 {
		t.Fatalf("expected 1 suppressed trigger recorded, got %d", stats.Suppressed)
	}
}
