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

// Package event defines the pipeline's unit of work: a decoded kernel
// networking state change and its protocol-tagged payload.
package event

import "sync/atomic"

// PayloadKind tags which payload variant an Event carries. Exactly one
// variant is populated per event; the rest are zero values.
type PayloadKind uint8

const (
	KindGeneric PayloadKind = iota
	KindLink
	KindAddress
	KindRoute
	KindNeighbor
	KindSocketDiag
	KindConntrack
	KindWireless
	KindVendorWireless
)

func (k PayloadKind) String() string {
	switch k {
	case KindLink:
		return "link"
	case KindAddress:
		return "address"
	case KindRoute:
		return "route"
	case KindNeighbor:
		return "neighbor"
	case KindSocketDiag:
		return "socket_diag"
	case KindConntrack:
		return "conntrack"
	case KindWireless:
		return "wireless"
	case KindVendorWireless:
		return "vendor_wireless"
	default:
		return "generic"
	}
}

// ifnameMax is the kernel IFNAMSIZ bound: 15 bytes plus a NUL.
const ifnameMax = 15

// Link mirrors a netlink RTM_NEWLINK/RTM_DELLINK payload.
type Link struct {
	Ifindex    int32
	Flags      uint32
	MTU        uint32
	MAC        [6]byte
	Qdisc      string
	OperState  uint8
	Ifname     string
}

// Address mirrors a netlink RTM_NEWADDR/RTM_DELADDR payload.
type Address struct {
	Ifindex   int32
	Family    uint8
	Prefixlen uint8
	Address   string
	Label     string
}

// Route mirrors a netlink RTM_NEWROUTE/RTM_DELROUTE payload.
type Route struct {
	Family     uint8
	DstLen     uint8
	Table      uint32
	Protocol   uint8
	Scope      uint8
	Type       uint8
	Gateway    string
	Destination string
	OutIfindex int32
}

// Neighbor mirrors a netlink RTM_NEWNEIGH/RTM_DELNEIGH (ARP/NDP) payload.
type Neighbor struct {
	Ifindex int32
	Family  uint8
	State   uint16
	Address string
	LLAddr  [6]byte
}

// SocketDiag mirrors an INET_DIAG response record.
type SocketDiag struct {
	Family   uint8
	Protocol uint8
	State    uint8
	SrcAddr  string
	SrcPort  uint16
	DstAddr  string
	DstPort  uint16
	Inode    uint32
}

// Conntrack mirrors a connection-tracking event record.
type Conntrack struct {
	Family    uint8
	Protocol  uint8
	State     string
	SrcAddr   string
	SrcPort   uint16
	DstAddr   string
	DstPort   uint16
	Mark      uint32
}

// Wireless mirrors an RTM_NEWLINK wireless-extension event.
type Wireless struct {
	Ifindex   int32
	Quality   uint8
	SignalDBM int8
	NoiseDBM  int8
}

// VendorWireless carries a vendor-specific wireless event the generic
// Wireless payload cannot represent.
type VendorWireless struct {
	Ifindex int32
	Vendor  string
	Raw     []byte
}

// Event is the pipeline's unit of work. Exactly one of the payload fields
// is meaningful, selected by Kind; Generic carries opaque bytes for
// message types the decoder does not (yet) model structurally.
//
// Ownership: an Event is exclusively owned by whoever currently holds it
// (decoder -> processor -> ring buffer -> worker). No handler may retain
// a reference after it returns; if it needs the data later, it copies.
type Event struct {
	Timestamp   int64 // monotonic-originated nanoseconds since epoch
	Sequence    uint64
	EventType   uint32
	MessageType uint16
	Interface   string // bounded to ifnameMax bytes, enforced by SetInterface

	Kind    PayloadKind
	Link    Link
	Addr    Address
	Route   Route
	Neigh   Neighbor
	Sock    SocketDiag
	Ctrack  Conntrack
	Wifi    Wireless
	Vendor  VendorWireless
	Generic []byte

	// Namespace is the network namespace label, empty when the source
	// does not report one. See SPEC_FULL.md Open Question #3: comparisons
	// against "" are strict equality, not a wildcard.
	Namespace string
}

// SetInterface truncates ifname to the kernel's IFNAMSIZ-1 bound.
func (e *Event) SetInterface(ifname string) {
	if len(ifname) > ifnameMax {
		ifname = ifname[:ifnameMax]
	}
	e.Interface = ifname
}

// Reset clears an Event so a pooled slot can be reused without leaking
// the previous payload's contents (notably Generic and Vendor.Raw).
func (e *Event) Reset() {
	*e = Event{}
}

// seqCounter is the process-wide monotonic sequence generator shared by
// every Event Processor instance created via NextSequence.
var seqCounter atomic.Uint64

// NextSequence returns the next monotonically increasing sequence number.
func NextSequence() uint64 {
	return seqCounter.Add(1)
}
