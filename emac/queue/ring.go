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

// Package queue implements the block granular circular queues shared with
// the PRU firmware. A queue is a packet buffer in OCMC, a descriptor ring
// in shared RAM and a descriptor record that carries the read and write
// pointers. The pointers are byte offsets into the descriptor ring; one
// slot accounts for one payload block.
package queue

import (
	"github.com/prunet/prunet/pkg/private/serrors"
	"github.com/prunet/prunet/pkg/shmem"
)

// ErrNoSpace reports that a queue cannot take the packet without catching
// up with its read pointer.
var ErrNoSpace = serrors.New("no space in queue")

// Ring binds one queue's derived placement to the regions it lives in.
type Ring struct {
	Geom Geom

	// Buffer is the region holding the packet payload, normally OCMC.
	Buffer shmem.Region
	// BDs is the region holding the descriptor ring, normally shared RAM.
	BDs shmem.Region

	BufferOffset uint16
	BufferEnd    uint16
	BDOffset     uint16
	BDEnd        uint16

	// Linear marks a collision buffer: payloads are written back to back
	// from the current write slot and never wrap around.
	Linear bool

	Desc Desc
}

// Slots returns the descriptor ring capacity. The inclusive BDEnd bound
// makes it one more than the plain difference suggests.
func (r *Ring) Slots() int {
	return int(r.BDEnd-r.BDOffset)/r.Geom.BDSize + 1
}

func (r *Ring) slot(ptr uint16) int {
	return int(ptr-r.BDOffset) / r.Geom.BDSize
}

func (r *Ring) ptrAt(slot int) uint16 {
	return r.BDOffset + uint16(slot*r.Geom.BDSize)
}

func (r *Ring) validPtr(ptr uint16) bool {
	return ptr >= r.BDOffset && ptr <= r.BDEnd &&
		int(ptr-r.BDOffset)%r.Geom.BDSize == 0
}

// freeBlocks computes the writable blocks for the given pointers. Equal
// pointers mean an empty queue.
func (r *Ring) freeBlocks(rd, wr uint16) int {
	n := r.Slots()
	ri, wi := r.slot(rd), r.slot(wr)
	switch {
	case wi > ri:
		return n - wi + ri
	case wi < ri:
		return ri - wi
	default:
		return n
	}
}

// Free reads the descriptor record and returns the writable blocks.
func (r *Ring) Free() int {
	return r.freeBlocks(r.Desc.RdPtr(), r.Desc.WrPtr())
}

func (r *Ring) copyIn(slot int, data []byte) {
	off := int(r.BufferOffset) + slot*r.Geom.BlockSize
	if r.Linear {
		copy(r.Buffer[off:off+len(data)], data)
		return
	}
	room := int(r.BufferEnd) - off
	if len(data) <= room {
		copy(r.Buffer[off:off+len(data)], data)
		return
	}
	copy(r.Buffer[off:off+room], data[:room])
	rest := data[room:]
	copy(r.Buffer[int(r.BufferOffset):int(r.BufferOffset)+len(rest)], rest)
}

func (r *Ring) copyOut(slot, n int) []byte {
	off := int(r.BufferOffset) + slot*r.Geom.BlockSize
	out := make([]byte, n)
	if r.Linear {
		copy(out, r.Buffer[off:off+n])
		return out
	}
	room := int(r.BufferEnd) - off
	if n <= room {
		copy(out, r.Buffer[off:off+n])
		return out
	}
	copy(out[:room], r.Buffer[off:off+room])
	copy(out[room:], r.Buffer[int(r.BufferOffset):])
	return out
}

// Push appends one packet. The payload is copied into the buffer starting
// at the write slot, the descriptor word is written at the write slot, and
// only then is the write pointer advanced. The pointer advance is the
// publish step: a consumer that observes the new write pointer also
// observes the descriptor and payload.
func (r *Ring) Push(data []byte, bd BD) error {
	if len(data) == 0 {
		return serrors.New("empty payload")
	}
	rd, wr := r.Desc.RdPtr(), r.Desc.WrPtr()
	if !r.validPtr(rd) || !r.validPtr(wr) {
		return serrors.New("queue descriptor out of range",
			"rd", rd, "wr", wr)
	}
	need := r.Geom.Blocks(len(data))
	// Equal pointers read as a fully free queue, so an exact fill is
	// legal. A nonzero descriptor at the write slot is the tie breaker: it
	// means the consumer has not caught up and the queue is full.
	if r.freeBlocks(rd, wr) < need || r.BDs.U32(int(wr)) != 0 {
		return ErrNoSpace
	}
	wi := r.slot(wr)
	r.copyIn(wi, data)
	bd.Length = len(data)
	r.BDs.SetU32(int(wr), bd.Word())
	r.Desc.SetWrPtr(r.ptrAt((wi + need) % r.Slots()))
	return nil
}

// PushBD appends a descriptor only entry. Used for shadow descriptors
// whose payload lives in a collision buffer. The entry still occupies the
// packet's full block count in the ring: the pointer arithmetic is the
// same on both sides whether or not the payload is in the queue's own
// buffer.
func (r *Ring) PushBD(bd BD) error {
	if bd.Length == 0 {
		return serrors.New("empty descriptor")
	}
	rd, wr := r.Desc.RdPtr(), r.Desc.WrPtr()
	if !r.validPtr(rd) || !r.validPtr(wr) {
		return serrors.New("queue descriptor out of range",
			"rd", rd, "wr", wr)
	}
	need := r.Geom.Blocks(bd.Length)
	if r.freeBlocks(rd, wr) < need || r.BDs.U32(int(wr)) != 0 {
		return ErrNoSpace
	}
	wi := r.slot(wr)
	r.BDs.SetU32(int(wr), bd.Word())
	r.Desc.SetWrPtr(r.ptrAt((wi + need) % r.Slots()))
	return nil
}

// Pop removes and returns the packet at the read pointer. A zero
// descriptor word means the ring is empty; pointer equality alone cannot
// tell an empty ring from an exactly filled one.
func (r *Ring) Pop() ([]byte, BD, bool) {
	rd, wr := r.Desc.RdPtr(), r.Desc.WrPtr()
	if !r.validPtr(rd) || !r.validPtr(wr) {
		return nil, BD{}, false
	}
	bd := ParseBD(r.BDs.U32(int(rd)))
	if bd.Length == 0 {
		return nil, BD{}, false
	}
	data := r.copyOut(r.slot(rd), bd.Length)
	r.BDs.SetU32(int(rd), 0)
	need := r.Geom.Blocks(bd.Length)
	r.Desc.SetRdPtr(r.ptrAt((r.slot(rd) + need) % r.Slots()))
	return data, bd, true
}

// Reset makes the ring empty by pulling the write pointer back to the read
// pointer. Used to hand a collision buffer back after its single packet
// was consumed.
func (r *Ring) Reset() {
	r.Desc.SetWrPtr(r.Desc.RdPtr())
}

// Rewind empties the ring and moves both pointers to the first slot. A
// linear collision buffer holds exactly one packet at a time and every
// push must start at the buffer base, so the owner rewinds it before use.
// The base descriptor slot is cleared so the stale word of the previous
// packet cannot read as full.
func (r *Ring) Rewind() {
	r.Desc.SetRdPtr(r.BDOffset)
	r.Desc.SetWrPtr(r.BDOffset)
	r.BDs.SetU32(int(r.BDOffset), 0)
}
