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

// Package layout derives the concrete memory placement of every queue from
// the configured queue sizes, and programs the derived offsets into the
// context tables the firmware reads. The derivation is purely arithmetic:
// the same configuration always yields the same placement.
package layout

import (
	"github.com/prunet/prunet/emac/queue"
	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/private/serrors"
	"github.com/prunet/prunet/pkg/shmem"
)

// Basis selects between the two firmware memory bases.
type Basis int

const (
	// BasisEMAC runs the two ports as independent MACs. The host queue
	// descriptors live in shared RAM after the descriptor pool, and each
	// port's transmit contexts live in its own data RAM.
	BasisEMAC Basis = iota
	// BasisSwitch runs the two ports as a cut-through switch with
	// per-port collision queues. All queue descriptors live in DRAM1.
	// The redundancy protocols run on this basis.
	BasisSwitch
)

func (b Basis) String() string {
	switch b {
	case BasisEMAC:
		return "emac"
	case BasisSwitch:
		return "switch"
	default:
		return "unknown"
	}
}

// NumPorts counts the host plus the two MII ports.
const NumPorts = 3

// Default queue sizes in blocks.
var (
	DefaultSwitchHostRx = [fwmap.NumQueues]int{254, 134, 134, 254}
	DefaultEMACHostRx   = [fwmap.NumQueues]int{194, 194, 194, 194}
	DefaultTx           = [fwmap.NumQueues]int{97, 97, 97, 97}
)

// DefaultColSize is the collision queue size in blocks.
const DefaultColSize = 48

// Config is the queue sizing input of the derivation.
type Config struct {
	Basis Basis
	Geom  queue.Geom
	// HostRx sizes the host receive queues in blocks. Frames from both
	// ports share the set; the descriptor port field attributes them.
	HostRx [fwmap.NumQueues]int
	// Tx sizes the per-port transmit queues in blocks.
	Tx [fwmap.NumQueues]int
	// ColSize sizes the collision queues in blocks. Switch basis only.
	ColSize int
}

// DefaultConfig returns the firmware default sizing for the given basis.
func DefaultConfig(basis Basis) Config {
	cfg := Config{
		Basis: basis,
		Geom:  queue.DefaultGeom,
		Tx:    DefaultTx,
	}
	switch basis {
	case BasisSwitch:
		cfg.HostRx = DefaultSwitchHostRx
		cfg.ColSize = DefaultColSize
	default:
		cfg.HostRx = DefaultEMACHostRx
	}
	return cfg
}

// Validate checks that every queue is at least two blocks, the smallest
// ring the pointer arithmetic is defined for.
func (cfg Config) Validate() error {
	if cfg.Geom.BlockSize <= 0 || cfg.Geom.BDSize <= 0 {
		return serrors.New("invalid geometry",
			"block_size", cfg.Geom.BlockSize, "bd_size", cfg.Geom.BDSize)
	}
	check := func(name string, q int, blocks int) error {
		if blocks < 2 {
			return serrors.New("queue too small", "queue", name,
				"index", q, "blocks", blocks)
		}
		return nil
	}
	for q := 0; q < fwmap.NumQueues; q++ {
		if err := check("host_rx", q, cfg.HostRx[q]); err != nil {
			return err
		}
		if err := check("tx", q, cfg.Tx[q]); err != nil {
			return err
		}
	}
	if cfg.Basis == BasisSwitch {
		if err := check("collision", 0, cfg.ColSize); err != nil {
			return err
		}
	}
	return nil
}

// DescRef locates a queue descriptor record.
type DescRef struct {
	Region shmem.RegionID
	Offset uint16
}

// Queue is the derived placement of one queue.
type Queue struct {
	// BufferOffset is the start of the packet buffer in OCMC.
	BufferOffset uint16
	// BufferEnd is the first byte past the packet buffer.
	BufferEnd uint16
	// BDOffset is the first descriptor slot in shared RAM.
	BDOffset uint16
	// BDEnd is the last descriptor slot, inclusive.
	BDEnd uint16
	// Desc locates the queue descriptor record.
	Desc DescRef
	// Blocks is the configured size.
	Blocks int
}

// Layout is the fully derived placement.
type Layout struct {
	Basis Basis
	Geom  queue.Geom

	// HostRx is the host receive set.
	HostRx [fwmap.NumQueues]Queue
	// Tx is the per-port transmit set, ports 1 and 2.
	Tx [NumPorts][fwmap.NumQueues]Queue
	// Col is the per-port collision queue, indexed by port id with the
	// host at 0. Switch basis only.
	Col [NumPorts]Queue

	// EOFBufferBD is the first shared RAM byte past the pooled
	// descriptor space.
	EOFBufferBD uint16
}

// emacTrail is the shared RAM block that follows the descriptor pool on
// the EMAC basis.
const (
	emacTrailRelease    = 0
	emacTrailRxContexts = 8
	emacTrailDescTable  = 40
	emacTrailOffTable   = 48
	emacTrailSizeTable  = 56
	emacTrailQueueDescs = 72
	emacTrailSize       = 104
)

// PortDRAM maps a MII port to its private data RAM.
func PortDRAM(port int) shmem.RegionID {
	if port == 2 {
		return shmem.DRAM1
	}
	return shmem.DRAM0
}

// Derive computes the placement of every queue. The queues are packed back
// to back in configuration order, buffers in OCMC and descriptors in shared
// RAM, both starting at the fixed pool bases.
func Derive(cfg Config) (*Layout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, serrors.Wrap("validating layout config", err)
	}
	l := &Layout{Basis: cfg.Basis, Geom: cfg.Geom}

	buf := fwmap.P0Q1BufferOffset
	bd := fwmap.P0Q1BDOffset
	place := func(blocks int) Queue {
		q := Queue{
			BufferOffset: uint16(buf),
			BufferEnd:    uint16(buf + blocks*cfg.Geom.BlockSize),
			BDOffset:     uint16(bd),
			BDEnd:        uint16(bd + (blocks-1)*cfg.Geom.BDSize),
			Blocks:       blocks,
		}
		buf += blocks * cfg.Geom.BlockSize
		bd += blocks * cfg.Geom.BDSize
		return q
	}

	for q := 0; q < fwmap.NumQueues; q++ {
		l.HostRx[q] = place(cfg.HostRx[q])
	}
	for p := 1; p < NumPorts; p++ {
		for q := 0; q < fwmap.NumQueues; q++ {
			l.Tx[p][q] = place(cfg.Tx[q])
		}
	}
	l.EOFBufferBD = uint16(bd)

	switch cfg.Basis {
	case BasisSwitch:
		for q := 0; q < fwmap.NumQueues; q++ {
			l.HostRx[q].Desc = DescRef{
				Region: shmem.DRAM1,
				Offset: fwmap.P0QueueDescOffset + uint16(q)*fwmap.QDescSize,
			}
		}
		for p := 1; p < NumPorts; p++ {
			for q := 0; q < fwmap.NumQueues; q++ {
				l.Tx[p][q].Desc = DescRef{
					Region: shmem.DRAM1,
					Offset: fwmap.P0QueueDescOffset +
						uint16(p*fwmap.NumQueues+q)*fwmap.QDescSize,
				}
			}
		}
		// Collision buffers sit at the fixed top-of-OCMC base; their
		// descriptors follow the pooled descriptor space.
		for p := 0; p < NumPorts; p++ {
			cq := Queue{
				BufferOffset: uint16(fwmap.P0ColBufferOffset +
					p*cfg.ColSize*cfg.Geom.BlockSize),
				BDOffset: uint16(bd),
				BDEnd:    uint16(bd + (cfg.ColSize-1)*cfg.Geom.BDSize),
				Blocks:   cfg.ColSize,
				Desc: DescRef{
					Region: shmem.DRAM1,
					Offset: fwmap.P0ColQueueDescOffset +
						uint16(p)*fwmap.QDescSize,
				},
			}
			cq.BufferEnd = cq.BufferOffset +
				uint16(cfg.ColSize*cfg.Geom.BlockSize)
			l.Col[p] = cq
			bd += cfg.ColSize * cfg.Geom.BDSize
		}
		if bd > fwmap.IndexArrayOffset {
			return nil, serrors.New("descriptor pool overruns shared RAM",
				"end", bd, "limit", fwmap.IndexArrayOffset)
		}
		if buf > fwmap.P0ColBufferOffset {
			return nil, serrors.New("buffer pool overruns collision base",
				"end", buf, "limit", fwmap.P0ColBufferOffset)
		}
	case BasisEMAC:
		for q := 0; q < fwmap.NumQueues; q++ {
			l.HostRx[q].Desc = DescRef{
				Region: shmem.SharedRAM,
				Offset: l.EOFBufferBD + emacTrailQueueDescs +
					uint16(q)*fwmap.QDescSize,
			}
		}
		for p := 1; p < NumPorts; p++ {
			for q := 0; q < fwmap.NumQueues; q++ {
				l.Tx[p][q].Desc = DescRef{
					Region: PortDRAM(p),
					Offset: fwmap.PortQueueDescOffset +
						uint16(q)*fwmap.QDescSize,
				}
			}
		}
		if int(l.EOFBufferBD)+emacTrailSize > fwmap.IndexArrayOffset {
			return nil, serrors.New("descriptor pool overruns shared RAM",
				"end", int(l.EOFBufferBD)+emacTrailSize,
				"limit", fwmap.IndexArrayOffset)
		}
		if buf > 1<<16 {
			return nil, serrors.New("buffer pool overruns OCMC",
				"end", buf)
		}
	default:
		return nil, serrors.New("unknown basis", "basis", int(cfg.Basis))
	}
	return l, nil
}

// BufferOffset returns the packet buffer offset of a transmit queue, or
// InvalidOffset when the port or queue index is out of range.
func (l *Layout) BufferOffset(port, q int) uint16 {
	if port < 1 || port >= NumPorts || q < 0 || q >= fwmap.NumQueues {
		return fwmap.InvalidOffset
	}
	return l.Tx[port][q].BufferOffset
}

// BDOffset returns the descriptor offset of a transmit queue, or
// InvalidOffset when the port or queue index is out of range.
func (l *Layout) BDOffset(port, q int) uint16 {
	if port < 1 || port >= NumPorts || q < 0 || q >= fwmap.NumQueues {
		return fwmap.InvalidOffset
	}
	return l.Tx[port][q].BDOffset
}

func writeQInfo(r shmem.Region, off uint16, q Queue, tx bool) {
	r.SetU16(int(off)+fwmap.QInfoBufferOffset, q.BufferOffset)
	if tx {
		r.SetU16(int(off)+fwmap.QInfoQueueDescOff, q.BufferEnd)
	} else {
		r.SetU16(int(off)+fwmap.QInfoQueueDescOff, q.Desc.Offset)
	}
	r.SetU16(int(off)+fwmap.QInfoBDOffset, q.BDOffset)
	r.SetU16(int(off)+fwmap.QInfoBDEnd, q.BDEnd)
}

func writeQDesc(r shmem.Region, off uint16, q Queue) {
	r.SetU16(int(off)+fwmap.QDescRdPtr, q.BDOffset)
	r.SetU16(int(off)+fwmap.QDescWrPtr, q.BDOffset)
	r.SetU8(int(off)+fwmap.QDescBusyS, fwmap.MasterSlaveBusyBitsClear)
	r.SetU8(int(off)+fwmap.QDescStatus, 0)
	r.SetU8(int(off)+fwmap.QDescMaxFill, 0)
	r.SetU8(int(off)+fwmap.QDescOverflowCnt, 0)
}

// Program writes the derived placement into the firmware context tables and
// initializes every queue descriptor to the empty state.
func (l *Layout) Program(m *shmem.Map) {
	switch l.Basis {
	case BasisSwitch:
		l.programSwitch(m)
	case BasisEMAC:
		l.programEMAC(m)
	}
}

func (l *Layout) programSwitch(m *shmem.Map) {
	d1 := m.DRAM1()

	for q := 0; q < fwmap.NumQueues; q++ {
		writeQInfo(d1, fwmap.P0Q1RxContextOffset+uint16(q)*fwmap.QInfoSize,
			l.HostRx[q], false)
	}
	rxCtx := [NumPorts]uint16{0, fwmap.P1Q1RxContextOffset, fwmap.P2Q1RxContextOffset}
	txCtx := [NumPorts]uint16{0, fwmap.TxContextP1Q1OffsetAddr, fwmap.TxContextP2Q1OffsetAddr}
	for p := 1; p < NumPorts; p++ {
		for q := 0; q < fwmap.NumQueues; q++ {
			off := uint16(q) * fwmap.QInfoSize
			writeQInfo(d1, rxCtx[p]+off, l.Tx[p][q], false)
			writeQInfo(d1, txCtx[p]+off, l.Tx[p][q], true)
		}
	}

	// Lookup tables, port major, host first.
	for p := 0; p < NumPorts; p++ {
		for q := 0; q < fwmap.NumQueues; q++ {
			var qu Queue
			if p == 0 {
				qu = l.HostRx[q]
			} else {
				qu = l.Tx[p][q]
			}
			i := (p*fwmap.NumQueues + q) * 2
			d1.SetU16(fwmap.QueueDescriptorOffsetAddr+i, qu.Desc.Offset)
			d1.SetU16(fwmap.QueueOffsetAddr+i, qu.BufferOffset)
			d1.SetU16(fwmap.QueueSizeAddr+i, uint16(qu.Blocks))
		}
	}

	for q := 0; q < fwmap.NumQueues; q++ {
		writeQDesc(d1, l.HostRx[q].Desc.Offset, l.HostRx[q])
	}
	for p := 1; p < NumPorts; p++ {
		for q := 0; q < fwmap.NumQueues; q++ {
			writeQDesc(d1, l.Tx[p][q].Desc.Offset, l.Tx[p][q])
		}
	}

	colRxCtx := [NumPorts]uint16{
		fwmap.ColRxContextP0OffsetAddr,
		fwmap.ColRxContextP1OffsetAddr,
		fwmap.ColRxContextP2OffsetAddr,
	}
	colTxCtx := [NumPorts]uint16{0, fwmap.ColTxContextP1OffsetAddr, fwmap.ColTxContextP2OffsetAddr}
	for p := 0; p < NumPorts; p++ {
		cq := l.Col[p]
		off := int(colRxCtx[p])
		d1.SetU16(off, cq.BufferOffset)
		d1.SetU16(off+2, cq.BufferEnd)
		d1.SetU16(off+fwmap.ColRxQueueDescOff, cq.Desc.Offset)
		d1.SetU16(off+fwmap.ColRxBDOffset, cq.BDOffset)
		d1.SetU16(off+fwmap.ColRxBDEnd, cq.BDEnd)
		if p > 0 {
			toff := int(colTxCtx[p])
			d1.SetU16(toff, cq.BufferOffset)
			d1.SetU16(toff+2, cq.BufferOffset)
			d1.SetU16(toff+4, cq.BufferEnd)
		}
		writeQDesc(d1, cq.Desc.Offset, cq)
		d1.SetU8(fwmap.CollisionStatusAddr+p, 0)
	}
}

func (l *Layout) programEMAC(m *shmem.Map) {
	sram := m.SharedRAM()
	base := int(l.EOFBufferBD)

	sram.SetU32(base+emacTrailRelease, 0)
	sram.SetU32(base+emacTrailRelease+4, 0)
	for q := 0; q < fwmap.NumQueues; q++ {
		writeQInfo(sram,
			l.EOFBufferBD+emacTrailRxContexts+uint16(q)*fwmap.QInfoSize,
			l.HostRx[q], false)

		i := q * 2
		sram.SetU16(base+emacTrailDescTable+i, l.HostRx[q].Desc.Offset)
		sram.SetU16(base+emacTrailOffTable+i, l.HostRx[q].BufferOffset)
		sram.SetU16(base+emacTrailSizeTable+i, uint16(l.HostRx[q].Blocks))

		writeQDesc(sram, l.HostRx[q].Desc.Offset, l.HostRx[q])
	}
	for p := 1; p < NumPorts; p++ {
		dram := m.Region(PortDRAM(p))
		for q := 0; q < fwmap.NumQueues; q++ {
			writeQInfo(dram,
				fwmap.TxContextQ1OffsetAddr+uint16(q)*fwmap.QInfoSize,
				l.Tx[p][q], true)
			writeQDesc(dram, l.Tx[p][q].Desc.Offset, l.Tx[p][q])
		}
	}
}
