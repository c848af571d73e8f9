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

package main

import (
	"fmt"
	"math/rand"
	"time"

	"netwatch/pkg/netwatch/event"
)

// simSource stands in for the out-of-scope kernel netlink decoder: a
// goroutine emitting semi-random Link/Neighbor/Route events at a fixed
// pace until stopped. It exists so cmd/netwatchd has something to push
// through the pipeline without a real kernel socket.
type simSource struct {
	interfaces []string
	interval   time.Duration
	rng        *rand.Rand

	stop chan struct{}
	out  chan *event.Event
}

func newSimSource(interfaces []string, interval time.Duration, seed int64) *simSource {
	return &simSource{
		interfaces: interfaces,
		interval:   interval,
		rng:        rand.New(rand.NewSource(seed)),
		stop:       make(chan struct{}),
		out:        make(chan *event.Event, 64),
	}
}

// Run generates events until Stop is called. Meant to run in its own
// goroutine; closes the output channel on exit so Next observes ok=false.
func (s *simSource) Run() {
	defer close(s.out)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.out <- s.next()
		}
	}
}

func (s *simSource) Stop() { close(s.stop) }

// Next implements glue.EventSource.
func (s *simSource) Next() (*event.Event, bool) {
	e, ok := <-s.out
	return e, ok
}

func (s *simSource) next() *event.Event {
	iface := s.interfaces[s.rng.Intn(len(s.interfaces))]
	e := &event.Event{
		Timestamp: time.Now().UnixNano(),
		Sequence:  event.NextSequence(),
	}
	e.SetInterface(iface)

	switch s.rng.Intn(3) {
	case 0:
		e.Kind = event.KindLink
		e.EventType = 16 // RTM_NEWLINK
		flags := uint32(0)
		if s.rng.Intn(20) == 0 {
			flags |= 0x100 // IFF_PROMISC, rarely
		}
		e.Link = event.Link{Ifindex: int32(s.rng.Intn(8) + 1), Flags: flags, MTU: 1500, Ifname: iface}
	case 1:
		e.Kind = event.KindNeighbor
		e.EventType = 28 // RTM_NEWNEIGH
		e.Neigh = event.Neighbor{Ifindex: int32(s.rng.Intn(8) + 1), Family: 2, Address: randomIP(s.rng)}
	default:
		e.Kind = event.KindRoute
		e.EventType = 24 // RTM_NEWROUTE
		e.Route = event.Route{Family: 2, DstLen: 0, Gateway: randomIP(s.rng), OutIfindex: int32(s.rng.Intn(8) + 1)}
	}
	return e
}

func randomIP(rng *rand.Rand) string {
	return fmt.Sprintf("%d.%d.%d.%d", rng.Intn(255), rng.Intn(255), rng.Intn(255), rng.Intn(255))
}
