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

// Package peertest simulates the firmware side of the shared memory
// contract for tests: it enqueues frames into the host queues, consumes
// transmit queues, injects queue contention and performs the node table
// maintenance the PRUs normally do.
package peertest

import (
	"net"

	"github.com/prunet/prunet/emac/layout"
	"github.com/prunet/prunet/emac/queue"
	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/private/serrors"
	"github.com/prunet/prunet/pkg/shmem"
)

// Firmware is a test double for the PRU pair.
type Firmware struct {
	m   *shmem.Map
	lay *layout.Layout

	nodeCount int
}

// New returns a Firmware over an already programmed map.
func New(m *shmem.Map, lay *layout.Layout) *Firmware {
	return &Firmware{m: m, lay: lay}
}

func (f *Firmware) ring(lq layout.Queue, linear bool) *queue.Ring {
	return &queue.Ring{
		Geom:         f.lay.Geom,
		Buffer:       f.m.OCMC(),
		BDs:          f.m.SharedRAM(),
		BufferOffset: lq.BufferOffset,
		BufferEnd:    lq.BufferEnd,
		BDOffset:     lq.BDOffset,
		BDEnd:        lq.BDEnd,
		Linear:       linear,
		Desc:         queue.NewDesc(f.m.Region(lq.Desc.Region), lq.Desc.Offset),
	}
}

// DeliverToHost enqueues a frame into host receive queue q as if it came
// in on the given port.
func (f *Firmware) DeliverToHost(port, q int, frame []byte) error {
	if q < 0 || q >= fwmap.NumQueues {
		return serrors.New("queue out of range", "queue", q)
	}
	return f.ring(f.lay.HostRx[q], false).Push(frame, queue.BD{Port: port})
}

// DeliverShadowToHost places a frame in the host collision buffer and a
// shadow descriptor in receive queue q. Switch basis only.
func (f *Firmware) DeliverShadowToHost(port, q int, frame []byte) error {
	col := f.ring(f.lay.Col[0], true)
	col.Rewind()
	if err := col.Push(frame, queue.BD{Port: port}); err != nil {
		return err
	}
	f.m.DRAM1().SetU8(fwmap.CollisionStatusAddr, 0x01)
	return f.ring(f.lay.HostRx[q], false).PushBD(queue.BD{
		Length: len(frame),
		Port:   port,
		Shadow: true,
	})
}

// SetMasterBusy injects or clears firmware ownership of a transmit queue.
func (f *Firmware) SetMasterBusy(port, q int, busy bool) {
	d := f.ring(f.lay.Tx[port][q], false).Desc
	status := d.Status()
	if busy {
		d.SetStatus(status | fwmap.QueueBusyMaster)
	} else {
		d.SetStatus(status &^ fwmap.QueueBusyMaster)
	}
}

// ConsumeTx drains a port's transmit queues in priority order, then the
// port's pending collision packet if any, and returns the frames in
// consumption order.
func (f *Firmware) ConsumeTx(port int) [][]byte {
	var frames [][]byte
	for q := 0; q < fwmap.NumQueues; q++ {
		r := f.ring(f.lay.Tx[port][q], false)
		// The host may hold the queue right now; the real firmware
		// retries later, the test double just skips it this pass.
		if r.Desc.BusyS() {
			continue
		}
		for {
			data, _, ok := r.Pop()
			if !ok {
				break
			}
			frames = append(frames, data)
		}
	}
	if f.lay.Basis == layout.BasisSwitch {
		d1 := f.m.DRAM1()
		if d1.U8(fwmap.CollisionStatusAddr+port) != 0 {
			col := f.ring(f.lay.Col[port], true)
			if data, _, ok := col.Pop(); ok {
				frames = append(frames, data)
			}
			col.Rewind()
			d1.SetU8(fwmap.CollisionStatusAddr+port, 0)
		}
	}
	return frames
}

// OverflowRx marks receive queue q as having overflowed n frames.
func (f *Firmware) OverflowRx(q, n int) {
	d := f.ring(f.lay.HostRx[q], false).Desc
	d.SetStatus(d.Status() | fwmap.QueueDiscardOvfl)
	f.m.Region(f.lay.HostRx[q].Desc.Region).
		SetU8(int(f.lay.HostRx[q].Desc.Offset)+fwmap.QDescOverflowCnt, uint8(n))
}

// InsertNode adds a remote node entry the way the firmware does: the item
// goes into the next free slot and the ordered index gains its position
// just before the end guard.
func (f *Firmware) InsertNode(mac net.HardwareAddr, status uint8) error {
	if f.nodeCount >= fwmap.NodeTableSizeMax {
		return serrors.New("node table full")
	}
	sram := f.m.SharedRAM()
	// First slot whose entry is invalid; eviction may have freed holes.
	slot := 0
	for s := 1; s <= fwmap.NodeTableSizeMax; s++ {
		base := fwmap.NodeTableOffset + s*fwmap.NodeTableEntrySize
		if sram.U8(base+fwmap.NodeEntState)&fwmap.NodeStateValid == 0 {
			slot = s
			break
		}
	}
	if slot == 0 {
		return serrors.New("node table full")
	}
	base := fwmap.NodeTableOffset + slot*fwmap.NodeTableEntrySize

	raw := []byte{mac[3], mac[2], mac[1], mac[0], mac[5], mac[4]}
	sram.Copy(base+fwmap.NodeEntMAC, raw)
	sram.SetU8(base+fwmap.NodeEntState, fwmap.NodeStateValid)
	sram.SetU8(base+fwmap.NodeEntStatus, status)
	sram.SetU32(base+fwmap.NodeEntCntRxA, 0)
	sram.SetU32(base+fwmap.NodeEntCntRxB, 0)
	sram.SetU16(base+fwmap.NodeEntTimeLastSeenSup, 0)
	sram.SetU16(base+fwmap.NodeEntTimeLastSeenA, 0)
	sram.SetU16(base+fwmap.NodeEntTimeLastSeenB, 0)

	// Shift the end guard one position down the index array.
	pos := f.nodeCount + 1
	sram.SetU8(fwmap.IndexArrayOffset+pos, uint8(slot))
	sram.SetU8(fwmap.IndexArrayOffset+pos+1, fwmap.IndexLastGuard)

	f.nodeCount++
	f.m.DRAM1().SetU32(fwmap.NodeTableSize, uint32(f.nodeCount))
	sram.SetU32(fwmap.LRECntNodes, uint32(f.nodeCount))
	return nil
}

// AgeNodes advances every live node's last seen ages by delta tens of
// milliseconds.
func (f *Firmware) AgeNodes(delta uint16) {
	sram := f.m.SharedRAM()
	f.eachLiveSlot(func(slot int) bool {
		base := fwmap.NodeTableOffset + slot*fwmap.NodeTableEntrySize
		for _, off := range []int{
			fwmap.NodeEntTimeLastSeenSup,
			fwmap.NodeEntTimeLastSeenA,
			fwmap.NodeEntTimeLastSeenB,
		} {
			sram.SetU16(base+off, sram.U16(base+off)+delta)
		}
		return false
	})
}

func (f *Firmware) eachLiveSlot(evict func(slot int) bool) {
	sram := f.m.SharedRAM()
	out := 1
	count := 0
	for pos := 1; pos <= fwmap.NodeTableSizeMax; pos++ {
		idx := int(sram.U8(fwmap.IndexArrayOffset + pos))
		if idx == 0 {
			continue
		}
		if idx >= fwmap.IndexLastGuard {
			break
		}
		if evict(idx) {
			base := fwmap.NodeTableOffset + idx*fwmap.NodeTableEntrySize
			sram.SetU8(base+fwmap.NodeEntState, 0)
			continue
		}
		sram.SetU8(fwmap.IndexArrayOffset+out, uint8(idx))
		out++
		count++
	}
	sram.SetU8(fwmap.IndexArrayOffset+out, fwmap.IndexLastGuard)
	for pos := out + 1; pos <= fwmap.NodeTableSizeMax+1; pos++ {
		sram.SetU8(fwmap.IndexArrayOffset+pos, 0)
	}
	f.nodeCount = count
	f.m.DRAM1().SetU32(fwmap.NodeTableSize, uint32(count))
	sram.SetU32(fwmap.LRECntNodes, uint32(count))
}

// RunTableCheck consumes the host's check flags once, evicting nodes the
// forget time has expired for and flushing the table when the clear bit
// is armed.
func (f *Firmware) RunTableCheck() {
	d1 := f.m.DRAM1()
	flags := d1.U32(fwmap.HostTimerCheckFlags)
	if flags == 0 {
		return
	}
	d1.SetU32(fwmap.HostTimerCheckFlags, 0)

	if flags&fwmap.TimerNodeTableClearBit != 0 {
		f.eachLiveSlot(func(int) bool { return true })
		return
	}
	if flags&fwmap.TimerNodeTableCheckBit == 0 {
		return
	}
	forget := uint16(d1.U32(fwmap.NodeForgetTime))
	sram := f.m.SharedRAM()
	f.eachLiveSlot(func(slot int) bool {
		base := fwmap.NodeTableOffset + slot*fwmap.NodeTableEntrySize
		return sram.U16(base+fwmap.NodeEntTimeLastSeenA) > forget &&
			sram.U16(base+fwmap.NodeEntTimeLastSeenB) > forget
	})
}

// NodeCount returns the simulator's live node count.
func (f *Firmware) NodeCount() int {
	return f.nodeCount
}
