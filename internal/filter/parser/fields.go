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

package parser

// FieldID enumerates the closed set of field names the filter grammar
// understands (§4.F). Unknown field names collapse to FieldUnknown at
// parse time with a warning, rather than failing the parse.
type FieldID int

const (
	FieldUnknown FieldID = iota
	FieldInterface
	FieldMessageType
	FieldEventType
	FieldNamespace
	FieldTimestamp
	FieldSequence

	FieldLinkIfname
	FieldAddrFamily
	FieldRouteGateway
)

var fieldNames = map[string]FieldID{
	"interface":        FieldInterface,
	"message_type":     FieldMessageType,
	"event_type":       FieldEventType,
	"namespace":        FieldNamespace,
	"timestamp":        FieldTimestamp,
	"sequence":         FieldSequence,
	"nl.link.ifname":   FieldLinkIfname,
	"nl.addr.family":   FieldAddrFamily,
	"nl.route.gateway": FieldRouteGateway,
}

// LookupField resolves a field name to its id. ok is false for unknown
// field names; callers that must not guess surface this as a parse-time
// warning and use FieldUnknown (which always evaluates false in the VM).
func LookupField(name string) (FieldID, bool) {
	id, ok := fieldNames[name]
	return id, ok
}

// FieldName returns the canonical name for id, or "" if unrecognized.
func FieldName(id FieldID) string {
	for name, fid := range fieldNames {
		if fid == id {
			return name
		}
	}
	return ""
}
