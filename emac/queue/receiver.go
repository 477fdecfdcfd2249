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

package queue

import (
	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/shmem"
)

// Packet is one frame lifted out of a host receive queue.
type Packet struct {
	Data []byte
	// Port is the descriptor's port attribution, 0 when absent.
	Port int
	// Queue is the index of the receive queue the frame came from.
	Queue int
	// RedFrame and StartOffset carry the descriptor's redundancy flags.
	RedFrame    bool
	StartOffset bool
}

// DrainResult accounts one Drain pass.
type DrainResult struct {
	Packets int
	Bytes   int
	// LengthErrors counts queues abandoned because a descriptor carried
	// a zero or oversized length. Abandoning resynchronizes the queue by
	// jumping the read pointer to the write pointer.
	LengthErrors int
	// PortErrors counts descriptors with an unattributable port id.
	PortErrors int
	// Overflows is the harvested firmware overflow discard count.
	Overflows int
	// More reports that the quota ran out with packets still queued.
	More bool
}

// Receiver drains the host receive queues in priority order. One Receiver
// per host queue set; not safe for concurrent use.
type Receiver struct {
	// Rings holds the receive queues, highest priority first.
	Rings []*Ring
	// Col is the host collision queue on the switch basis, nil
	// otherwise. Shadow descriptors reference its buffer, and consuming
	// one hands the buffer back to the firmware.
	Col *Ring
	// ColStatus is the region holding the collision status bytes, nil
	// when Col is nil.
	ColStatus shmem.Region
	// MaxFrame is the largest acceptable payload length.
	MaxFrame int
	// AttributePort requires a valid port id in every descriptor.
	AttributePort bool
}

// Drain lifts up to quota packets out of the queues and hands each to
// emit. Queues are drained in ring order; a queue with a corrupt
// descriptor is abandoned for this pass after resynchronizing it.
func (rx *Receiver) Drain(quota int, emit func(Packet)) DrainResult {
	var res DrainResult
	for qi, r := range rx.Rings {
		res.Overflows += r.Desc.HarvestOverflow()
		for {
			if quota <= 0 {
				if !rx.empty() {
					res.More = true
				}
				return res
			}
			rd, wr := r.Desc.RdPtr(), r.Desc.WrPtr()
			if !r.validPtr(rd) || !r.validPtr(wr) {
				res.LengthErrors++
				r.Desc.SetRdPtr(r.BDOffset)
				r.Desc.SetWrPtr(r.BDOffset)
				break
			}
			if rd == wr {
				break
			}
			bd := ParseBD(r.BDs.U32(int(rd)))

			length := bd.Length
			if rx.AttributePort && (bd.Port < 1 || bd.Port > 2) {
				res.PortErrors++
				length = 0
			}
			if length == 0 || length > rx.MaxFrame {
				// The descriptor stream is out of step with the
				// firmware. Drop everything queued and restart
				// from the write pointer.
				res.LengthErrors++
				r.Desc.SetRdPtr(wr)
				break
			}

			var data []byte
			need := r.Geom.Blocks(length)
			if bd.Shadow && rx.Col != nil {
				// The payload sits at the collision buffer base; the
				// read pointer still advances by the packet's block
				// count like any other frame.
				data = rx.Col.copyOut(0, length)
				rx.Col.Reset()
				rx.ColStatus.SetU8(fwmap.CollisionStatusAddr, 0)
			} else {
				data = r.copyOut(r.slot(rd), length)
			}

			r.BDs.SetU32(int(rd), 0)
			r.Desc.SetRdPtr(r.ptrAt((r.slot(rd) + need) % r.Slots()))

			emit(Packet{
				Data:        data,
				Port:        bd.Port,
				Queue:       qi,
				RedFrame:    bd.RedFrame,
				StartOffset: bd.StartOffset,
			})
			res.Packets++
			res.Bytes += length
			quota--
		}
	}
	return res
}

func (rx *Receiver) empty() bool {
	for _, r := range rx.Rings {
		if r.Desc.RdPtr() != r.Desc.WrPtr() {
			return false
		}
	}
	return true
}
