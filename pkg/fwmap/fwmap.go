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

// Package fwmap is the wire contract with the PRU firmware: fixed byte
// offsets into the shared memory regions, the bit layout of the buffer
// descriptor word and of the queue descriptor record, and the protocol
// constants both sides agree on. Nothing here may change without a matching
// firmware change.
package fwmap

// Ring geometry.
const (
	// BlockSize is the payload unit of the circular packet buffers.
	// Packet lengths are rounded up to whole blocks for space accounting.
	BlockSize = 32
	// BDSize is the size of one buffer descriptor ring slot.
	BDSize = 4
	// QDescSize is the size of one queue descriptor record.
	QDescSize = 8

	NumQueues  = 4
	NumVlanPCP = 8

	MinFrameSize = 60
	MaxFrameSize = 1518
	// RedTagSize is the size of the HSR tag / PRP redundancy control
	// trailer. In transparent-reception mode it is stripped on delivery.
	RedTagSize = 6
	// MaxFrameSizeRed is the frame size cap when a redundancy tag may be
	// carried.
	MaxFrameSizeRed = MaxFrameSize + RedTagSize
)

// InvalidOffset is the sentinel returned by layout lookups for out-of-range
// port or queue indices. It must never be dereferenced.
const InvalidOffset = 0xffff

// Buffer descriptor word bit layout. One 32-bit little-endian word per
// queued packet. A zero word means "no packet queued here".
const (
	BDStartOffsetMask = 1 << 0  // redundancy tag prepended to payload
	BDRedFrameMask    = 1 << 4  // frame needs redundancy tag handling
	BDShadowMask      = 1 << 14 // payload lives in the collision buffer
	BDPortShift       = 16      // originating/destination port id
	BDPortMask        = 0x3 << BDPortShift
	BDLengthShift     = 18 // payload length in bytes
	BDLengthMask      = 0x7ff << BDLengthShift
	BDBroadcastMask   = 1 << 29
	BDErrorMask       = 1 << 30
)

// Queue descriptor record layout, relative to the record base. The record
// is polled by the firmware; every field is re-read on each host access.
const (
	QDescRdPtr       = 0 // u16, BD ring byte offset
	QDescWrPtr       = 2 // u16, BD ring byte offset
	QDescBusyS       = 4 // u8, set only by the host to claim the queue
	QDescStatus      = 5 // u8
	QDescMaxFill     = 6 // u8, maintained by firmware
	QDescOverflowCnt = 7 // u8, cleared by the host after harvesting
)

// Queue descriptor status bits.
const (
	// QueueBusyMaster is set by the firmware side that owns the queue.
	QueueBusyMaster = 0x01
	// QueueDiscardOvfl reports that the firmware discarded a frame
	// because the queue overflowed.
	QueueDiscardOvfl = 0x04
)

// Queue info record layout (the per-queue context blocks written once at
// attach and then trusted by the firmware).
const (
	QInfoBufferOffset  = 0 // u16, OCMC
	QInfoQueueDescOff  = 2 // u16 (buffer end offset for TX port queues)
	QInfoBDOffset      = 4 // u16, shared RAM
	QInfoBDEnd         = 6 // u16, shared RAM
	QInfoSize          = 8
	ColTxContextSize   = 8
	ColRxContextSize   = 12
	ColRxQueueDescOff  = 4 // u16 within the col rx context
	ColRxBDOffset      = 6
	ColRxBDEnd         = 8
)

// Shared RAM map.
const (
	// QueuePCPMapOffset holds the VLAN PCP to RX queue map, two 32-bit
	// words, one queue id per byte, PCP 0 in the low byte of the first.
	QueuePCPMapOffset = 0x0120

	// P0Q1BDOffset is the start of the pooled buffer descriptor space.
	// All BD offsets of all queues of all ports derive from it.
	P0Q1BDOffset = 0x0400

	// Redundancy node table. Slot 0 and slot NodeTableSizeMax+1 are the
	// guard entries and are never overwritten.
	IndexArrayOffset = 0x3000
	NodeTableOffset  = 0x3100
	NodeTableEnd     = NodeTableOffset + (NodeTableSizeMax+1)*NodeTableEntrySize

	// LRE statistics block (IEC 62439 counters plus the two policy words).
	LREStart                = 0x6000
	LRECntTxA               = LREStart + 4
	LRECntNodes             = LRECntTxA + 4*12
	LREDuplicateDiscard     = LRECntTxA + 4*25
	LRETransparentReception = LRECntTxA + 4*26
	LREStatsWords           = 28
	LREStatsSize            = 4 * LREStatsWords
)

// Node table shape.
const (
	NodeTableSizeMax   = 128
	NodeTableEntrySize = 32
	// IndexArraySize covers the first guard, the node slots and the last
	// guard.
	IndexArraySize = NodeTableSizeMax + 2
	// IndexLastGuard is the index array value marking the end of the
	// occupied view.
	IndexLastGuard = NodeTableSizeMax + 1
)

// Node table entry layout, relative to the entry base.
const (
	NodeEntMAC             = 0  // 6 bytes, firmware byte order
	NodeEntState           = 6  // u8, bit 0 = valid
	NodeEntStatus          = 7  // u8, see NodeStatus* below
	NodeEntCntRxA          = 8  // u32
	NodeEntCntRxB          = 12 // u32
	NodeEntPRPLineIDErrA   = 16 // u8
	NodeEntPRPLineIDErrB   = 17 // u8
	NodeEntCntRxSupA       = 18 // u8
	NodeEntCntRxSupB       = 19 // u8
	NodeEntTimeLastSeenSup = 20 // u16, tens of milliseconds
	NodeEntTimeLastSeenA   = 22 // u16
	NodeEntTimeLastSeenB   = 24 // u16
)

// Node entry status bits.
const (
	NodeStateValid = 0x01

	NodeStatusDupMask   = 0x03
	NodeStatusTypeShift = 2
	NodeStatusTypeMask  = 0x7 << NodeStatusTypeShift
	NodeStatusHSRBit    = 0x20
)

// Remote node duplicate handling, stored in NodeStatusDupMask.
const (
	NodeDupDiscard = 0x01
	NodeDupAccept  = 0x02
)

// Remote node types, stored in NodeStatusTypeMask (pre-shift values).
const (
	NodeTypeSANA   = 0x01
	NodeTypeSANB   = 0x02
	NodeTypeSANAB  = 0x03
	NodeTypeDAN    = 0x04
	NodeTypeRedBox = 0x05
	NodeTypeVDAN   = 0x06
)

// DRAM1 map (switch-mode configuration tables and redundancy timers).
const (
	P0Q1RxContextOffset = 0x0100
	P1Q1RxContextOffset = 0x0120
	P2Q1RxContextOffset = 0x0140

	TxContextP1Q1OffsetAddr = 0x0160
	TxContextP2Q1OffsetAddr = 0x0180

	ColRxContextP0OffsetAddr = 0x01a0
	ColRxContextP1OffsetAddr = 0x01b0
	ColRxContextP2OffsetAddr = 0x01c0

	ColTxContextP1OffsetAddr = 0x01d0
	ColTxContextP2OffsetAddr = 0x01e0

	// Per-port lookup tables polled by both PRUs: u16 per (port, queue),
	// ports laid out host, port 1, port 2.
	QueueDescriptorOffsetAddr = 0x0200
	QueueOffsetAddr           = 0x0220
	QueueSizeAddr             = 0x0240

	// Queue descriptor records (switch mode: all in DRAM1).
	P0QueueDescOffset    = 0x0280
	P0ColQueueDescOffset = 0x02e0

	// One status byte per port, indexed by port id. Written by the host
	// to hand a collision-queue packet to the firmware, cleared by the
	// consumer.
	CollisionStatusAddr = 0x0300
)

// DRAM1 redundancy control words.
const (
	HostTimerCheckFlags      = 0x0310
	NodeTableSize            = 0x0314
	NodeTableArbitration     = 0x0318
	NodeForgetTime           = 0x031c
	NodeTableCheckReso       = 0x0320
	DupliForgetTime          = 0x0324
	DupliHostCheckReso       = 0x0328
	DupliPortCheckReso       = 0x032c
	HostDuplicateArbitration = 0x0330
	DuplicateHostTableSize   = 0x0334
	DuplicatePortTableSize   = 0x0338
	SupAddr                  = 0x033c
	SupAddrLow               = 0x0340

	DuplicatePortTablePRU0     = 0x0400
	DuplicatePortTablePRU1     = 0x0c00
	DuplicatePortTableDmemSize = 0x0800
)

// HostTimerCheckFlags bits, written every tick by the host and polled by
// the firmware.
const (
	TimerNodeTableCheckBit  = 0x01
	TimerHostTableCheckBit  = 0x02
	TimerPortTableCheckBits = 0x0c
	TimerNodeTableClearBit  = 0x10
)

// DRAM0 map (redundancy working state plus the EMAC-mode port 1 config).
const (
	TxContextQ1OffsetAddr = 0x0100
	PortQueueDescOffset   = 0x0200

	DuplicateHostTable         = 0x0400
	DuplicateHostTableDmemSize = 0x0800

	NextFreeAddressNTQueue         = 0x0c00
	NextFreeAddressNTQueueDmemSize = NodeTableSizeMax * 4
	PointersFreeAddrNodeTable      = 0x0e00

	LREHSRMode = 0x0e04

	DbgStart             = 0x0e10
	DebugCounterDmemSize = 0x50
)

// Per-port private block, at the same offsets in DRAM0 (port 1) and DRAM1
// (port 2).
const (
	PortControlAddr  = 0x1e00
	PortStatusOffset = 0x1e04
	PhySpeedOffset   = 0x1e08
	PortMACAddr      = 0x1e10
	StatisticsOffset = 0x1f00
)

// Port status bits mirrored for the firmware.
const (
	PortStatusLink   = 0x01
	PortStatusHalfDX = 0x02
)

// OCMC map.
const (
	// P0Q1BufferOffset is the start of the pooled packet buffer space.
	P0Q1BufferOffset = 0x0000
	// P0ColBufferOffset is the collision buffer base; per-port collision
	// buffers follow back to back. The base leaves the last port's
	// buffer end representable in the 16 bit context fields.
	P0ColBufferOffset = 0xe800
)

// Initialization values.
const (
	TableCheckResolution10ms = 10
	NodeForgetTime60000ms    = 6000 // tens of milliseconds
	DuplicateForgetTime400ms = 40   // tens of milliseconds
	MasterSlaveBusyBitsClear = 0

	DuplicateHostTableSizeInit = 256
	DuplicatePortTableSizeInit = 64
	NodeTableSizeMaxPRUInit    = NodeTableSizeMax

	NextFreeAddressNTQueueInit = NodeTableOffset + NodeTableEntrySize
	NextFreeAddressNTQueueStep = NodeTableEntrySize
	PointersFreeAddrInit       = 0x007f0000

	// IndexArrayInit seeds the ordered view with the first guard at slot
	// 0 and the last guard immediately after it.
	IndexArrayInit = uint32(IndexLastGuard) << 8

	// Node table guard entry words.
	NodeTableGuard0Lo = 0x00000000
	NodeTableGuard0Hi = 0x00010000
	NodeTableGuard1Lo = 0xffffffff
	NodeTableGuard1Hi = 0x0001ffff

	// Supervision frame destination 01:15:4e:00:01:00, split across two
	// words the way the firmware consumes it.
	SupAddressInitOctetsHigh = 0x004e1501
	SupAddressInitOctetsLow  = 0x00000100
)

// IEC 62439 policy constants.
const (
	DuplicateDiscard = 0x01
	DuplicateAccept  = 0x02

	TransparentReceptionRemoveRCT = 0x01
	TransparentReceptionPassRCT   = 0x02
)

// HSR operating submodes.
const (
	HSRModeH = 1
	HSRModeN = 2
	HSRModeT = 3
	HSRModeU = 4
	HSRModeM = 5
)
