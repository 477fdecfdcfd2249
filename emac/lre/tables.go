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

// Package lre manages the IEC 62439-3 link redundancy entity state shared
// with the firmware: the remote node table, the duplicate elimination
// tables, the LRE statistics block and the periodic table maintenance
// handshake.
package lre

import (
	"net"

	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/shmem"
)

// Init brings the redundancy tables to their boot state. The regions must
// already be zeroed. The firmware trusts the guard entries, the free slot
// queue and the policy defaults written here.
func Init(m *shmem.Map, hsr bool) {
	sram := m.SharedRAM()
	d0 := m.DRAM0()
	d1 := m.DRAM1()

	// Node table guards. The firmware's ordered walk relies on the
	// smallest and largest possible keys bracketing the real entries.
	sram.SetU32(fwmap.NodeTableOffset, fwmap.NodeTableGuard0Lo)
	sram.SetU32(fwmap.NodeTableOffset+4, fwmap.NodeTableGuard0Hi)
	sram.SetU32(fwmap.NodeTableEnd, fwmap.NodeTableGuard1Lo)
	sram.SetU32(fwmap.NodeTableEnd+4, fwmap.NodeTableGuard1Hi)

	sram.SetU32(fwmap.IndexArrayOffset, fwmap.IndexArrayInit)

	// Free slot queue: every non guard entry address, in order.
	for i := 0; i < fwmap.NodeTableSizeMax; i++ {
		d0.SetU32(fwmap.NextFreeAddressNTQueue+4*i,
			uint32(fwmap.NextFreeAddressNTQueueInit+
				i*fwmap.NextFreeAddressNTQueueStep))
	}
	d0.SetU32(fwmap.PointersFreeAddrNodeTable, fwmap.PointersFreeAddrInit)

	d1.SetU32(fwmap.NodeTableSize, 0)
	d1.SetU32(fwmap.NodeTableArbitration, 0)
	d1.SetU32(fwmap.HostDuplicateArbitration, 0)
	d1.SetU32(fwmap.NodeForgetTime, fwmap.NodeForgetTime60000ms)
	d1.SetU32(fwmap.DupliForgetTime, fwmap.DuplicateForgetTime400ms)
	d1.SetU32(fwmap.NodeTableCheckReso, fwmap.TableCheckResolution10ms)
	d1.SetU32(fwmap.DupliHostCheckReso, fwmap.TableCheckResolution10ms)
	d1.SetU32(fwmap.DupliPortCheckReso, fwmap.TableCheckResolution10ms)
	d1.SetU32(fwmap.DuplicateHostTableSize, fwmap.DuplicateHostTableSizeInit)
	d1.SetU32(fwmap.DuplicatePortTableSize, fwmap.DuplicatePortTableSizeInit)
	d1.SetU32(fwmap.SupAddr, fwmap.SupAddressInitOctetsHigh)
	d1.SetU32(fwmap.SupAddrLow, fwmap.SupAddressInitOctetsLow)
	d1.SetU32(fwmap.HostTimerCheckFlags, 0)

	if hsr {
		d0.SetU32(fwmap.LREHSRMode, fwmap.HSRModeH)
	}
	sram.SetU32(fwmap.LREDuplicateDiscard, fwmap.DuplicateDiscard)
	sram.SetU32(fwmap.LRETransparentReception,
		fwmap.TransparentReceptionRemoveRCT)
}

// NodeType classifies a remote node.
type NodeType int

const (
	NodeTypeUnknown NodeType = iota
	NodeTypeSANA
	NodeTypeSANB
	NodeTypeSANAB
	NodeTypeDANP
	NodeTypeDANH
	NodeTypeRedBoxP
	NodeTypeRedBoxH
	NodeTypeVDANP
	NodeTypeVDANH
)

func (t NodeType) String() string {
	switch t {
	case NodeTypeSANA:
		return "SAN A"
	case NodeTypeSANB:
		return "SAN B"
	case NodeTypeSANAB:
		return "SAN AB"
	case NodeTypeDANP:
		return "DANP"
	case NodeTypeDANH:
		return "DANH"
	case NodeTypeRedBoxP:
		return "REDBOXP"
	case NodeTypeRedBoxH:
		return "REDBOXH"
	case NodeTypeVDANP:
		return "VDANP"
	case NodeTypeVDANH:
		return "VDANH"
	default:
		return "UNKNOWN"
	}
}

func classify(status uint8) NodeType {
	hsr := status&fwmap.NodeStatusHSRBit != 0
	switch (status & fwmap.NodeStatusTypeMask) >> fwmap.NodeStatusTypeShift {
	case fwmap.NodeTypeSANA:
		return NodeTypeSANA
	case fwmap.NodeTypeSANB:
		return NodeTypeSANB
	case fwmap.NodeTypeSANAB:
		return NodeTypeSANAB
	case fwmap.NodeTypeDAN:
		if hsr {
			return NodeTypeDANH
		}
		return NodeTypeDANP
	case fwmap.NodeTypeRedBox:
		if hsr {
			return NodeTypeRedBoxH
		}
		return NodeTypeRedBoxP
	case fwmap.NodeTypeVDAN:
		if hsr {
			return NodeTypeVDANH
		}
		return NodeTypeVDANP
	default:
		return NodeTypeUnknown
	}
}

// Node is one remote node table entry in host order.
type Node struct {
	MAC  net.HardwareAddr
	Type NodeType
	// Valid mirrors the entry's state bit. The index walk only yields
	// entries the firmware considers live, but an entry can be aged out
	// between the index read and the entry read.
	Valid bool
	// RxA and RxB count frames received from the node per LAN.
	RxA uint32
	RxB uint32
	// SupRxA and SupRxB count received supervision frames per LAN.
	SupRxA uint8
	SupRxB uint8
	// ErrA and ErrB count PRP line identifier mismatches per LAN.
	ErrA uint8
	ErrB uint8
	// TimeLastSeenA, B and Sup age the node, in tens of milliseconds
	// since last seen.
	TimeLastSeenA   uint16
	TimeLastSeenB   uint16
	TimeLastSeenSup uint16
}

func readNode(sram shmem.Region, slot int) Node {
	base := fwmap.NodeTableOffset + slot*fwmap.NodeTableEntrySize
	raw := sram.Bytes(base+fwmap.NodeEntMAC, 6)
	// The firmware stores the address word swapped.
	mac := net.HardwareAddr{raw[3], raw[2], raw[1], raw[0], raw[5], raw[4]}
	return Node{
		MAC:             mac,
		Type:            classify(sram.U8(base + fwmap.NodeEntStatus)),
		Valid:           sram.U8(base+fwmap.NodeEntState)&fwmap.NodeStateValid != 0,
		RxA:             sram.U32(base + fwmap.NodeEntCntRxA),
		RxB:             sram.U32(base + fwmap.NodeEntCntRxB),
		SupRxA:          sram.U8(base + fwmap.NodeEntCntRxSupA),
		SupRxB:          sram.U8(base + fwmap.NodeEntCntRxSupB),
		ErrA:            sram.U8(base + fwmap.NodeEntPRPLineIDErrA),
		ErrB:            sram.U8(base + fwmap.NodeEntPRPLineIDErrB),
		TimeLastSeenA:   sram.U16(base + fwmap.NodeEntTimeLastSeenA),
		TimeLastSeenB:   sram.U16(base + fwmap.NodeEntTimeLastSeenB),
		TimeLastSeenSup: sram.U16(base + fwmap.NodeEntTimeLastSeenSup),
	}
}

// ReadNodeTable walks the ordered index array and returns the live
// entries. The guards are skipped: a zero index marks unused positions
// and the last guard index terminates the walk.
func ReadNodeTable(m *shmem.Map) []Node {
	sram := m.SharedRAM()
	var nodes []Node
	for i := 0; i < fwmap.IndexArraySize; i++ {
		idx := int(sram.U8(fwmap.IndexArrayOffset + i))
		if idx == 0 {
			continue
		}
		if idx >= fwmap.IndexLastGuard {
			break
		}
		nodes = append(nodes, readNode(sram, idx))
	}
	return nodes
}

// NodeCount returns the firmware's live node count.
func NodeCount(m *shmem.Map) uint32 {
	return m.SharedRAM().U32(fwmap.LRECntNodes)
}
