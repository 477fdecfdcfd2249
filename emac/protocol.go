// Copyright 2023 The prunet Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package emac

import (
	"strings"

	"github.com/prunet/prunet/emac/layout"
	"github.com/prunet/prunet/pkg/private/serrors"
)

// Protocol selects the firmware personality.
type Protocol int

const (
	// ProtocolEMAC runs the ports as two standalone MACs.
	ProtocolEMAC Protocol = iota
	// ProtocolSwitch runs the ports as a learning cut-through switch.
	ProtocolSwitch
	// ProtocolHSR runs IEC 62439-3 clause 5 ring redundancy.
	ProtocolHSR
	// ProtocolPRP runs IEC 62439-3 clause 4 parallel redundancy.
	ProtocolPRP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolEMAC:
		return "emac"
	case ProtocolSwitch:
		return "switch"
	case ProtocolHSR:
		return "hsr"
	case ProtocolPRP:
		return "prp"
	default:
		return "unknown"
	}
}

// ParseProtocol parses a protocol name.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(s) {
	case "emac":
		return ProtocolEMAC, nil
	case "switch":
		return ProtocolSwitch, nil
	case "hsr":
		return ProtocolHSR, nil
	case "prp":
		return ProtocolPRP, nil
	default:
		return 0, serrors.New("unknown protocol", "protocol", s)
	}
}

// Basis returns the memory basis the protocol runs on.
func (p Protocol) Basis() layout.Basis {
	if p == ProtocolEMAC {
		return layout.BasisEMAC
	}
	return layout.BasisSwitch
}

// Red reports whether the protocol carries IEC 62439-3 redundancy state.
func (p Protocol) Red() bool {
	return p == ProtocolHSR || p == ProtocolPRP
}
