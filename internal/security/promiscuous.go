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

// Package security implements the independent heuristic detectors of
// §4.L: promiscuous-mode, ARP/neighbor flood, interface storm, route
// hijack, and suspicious interface name. Each detector owns its own
// mutex and triggering one never gates the others, mirroring the
// teacher's separation of the commit and eviction loops into
// independent concerns.
package security

import (
	"sync"

	"netwatch/pkg/netwatch/event"
)

// ifPromisc is the Linux IFF_PROMISC link flag bit.
const ifPromisc = 0x100

// PromiscuousFinding reports an interface that just entered promiscuous
// mode.
type PromiscuousFinding struct {
	Interface string
	Ifindex   int32
}

// PromiscuousDetector watches Link events for the promiscuous flag
// transitioning from unset to set. It is edge-triggered: an interface
// that stays promiscuous across many link events reports only once,
// until it is observed leaving promiscuous mode again.
type PromiscuousDetector struct {
	mu    sync.Mutex
	state map[int32]bool
}

// NewPromiscuousDetector returns an empty detector.
func NewPromiscuousDetector() *PromiscuousDetector {
	return &PromiscuousDetector{state: make(map[int32]bool)}
}

// Observe records e and reports a finding the instant an interface's
// IFF_PROMISC bit flips on.
func (d *PromiscuousDetector) Observe(e *event.Event) (PromiscuousFinding, bool) {
	if e.Kind != event.KindLink {
		return PromiscuousFinding{}, false
	}
	on := e.Link.Flags&ifPromisc != 0

	d.mu.Lock()
	defer d.mu.Unlock()

	was := d.state[e.Link.Ifindex]
	d.state[e.Link.Ifindex] = on
	if on && !was {
		return PromiscuousFinding{Interface: e.Interface, Ifindex: e.Link.Ifindex}, true
	}
	return PromiscuousFinding{}, false
}
