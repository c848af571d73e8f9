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
	"strings"
	"sync"

	"netwatch/pkg/netwatch/event"
)

// SuspiciousInterfaceFinding reports an interface name matching a
// configured denylist substring.
type SuspiciousInterfaceFinding struct {
	Interface string
	Matched   string
}

// SuspiciousInterfaceDetector flags interface names containing any of a
// configured set of denylisted substrings (e.g. "rogue", "evil-ap").
// The denylist is read-only after construction; the mutex guards only
// the already-flagged set so a repeated event on the same interface
// does not keep re-reporting.
type SuspiciousInterfaceDetector struct {
	denylist []string

	mu      sync.Mutex
	flagged map[string]bool
}

// NewSuspiciousInterfaceDetector returns a detector checking interface
// names against denylist, a set of lowercase substrings.
func NewSuspiciousInterfaceDetector(denylist []string) *SuspiciousInterfaceDetector {
	list := make([]string, len(denylist))
	for i, d := range denylist {
		list[i] = strings.ToLower(d)
	}
	return &SuspiciousInterfaceDetector{denylist: list, flagged: make(map[string]bool)}
}

// Observe reports a finding the first time e.Interface matches a
// denylisted substring.
func (d *SuspiciousInterfaceDetector) Observe(e *event.Event) (SuspiciousInterfaceFinding, bool) {
	if e.Interface == "" {
		return SuspiciousInterfaceFinding{}, false
	}
	lower := strings.ToLower(e.Interface)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.flagged[e.Interface] {
		return SuspiciousInterfaceFinding{}, false
	}
	for _, bad := range d.denylist {
		if strings.Contains(lower, bad) {
			d.flagged[e.Interface] = true
			return SuspiciousInterfaceFinding{Interface: e.Interface, Matched: bad}, true
		}
	}
	return SuspiciousInterfaceFinding{}, false
}
