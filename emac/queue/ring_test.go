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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/shmem"
)

// testRing builds a four slot ring with 64 byte blocks, descriptors at
// 0x100 and the queue descriptor record at 0x10 of a scratch region.
func testRing(t *testing.T) *Ring {
	t.Helper()
	buf := make(shmem.Region, 512)
	bds := make(shmem.Region, 512)
	desc := make(shmem.Region, 32)
	r := &Ring{
		Geom:         Geom{BlockSize: 64, BDSize: 4},
		Buffer:       buf,
		BDs:          bds,
		BufferOffset: 0,
		BufferEnd:    256,
		BDOffset:     0x100,
		BDEnd:        0x10c,
		Desc:         NewDesc(desc, 0x10),
	}
	r.Desc.SetRdPtr(r.BDOffset)
	r.Desc.SetWrPtr(r.BDOffset)
	return r
}

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestRingFreeBlocks(t *testing.T) {
	r := testRing(t)
	assert.Equal(t, 4, r.Slots())
	assert.Equal(t, 4, r.Free())

	require.NoError(t, r.Push(pattern(100), BD{}))
	assert.Equal(t, 2, r.Free())

	require.NoError(t, r.Push(pattern(60), BD{}))
	assert.Equal(t, 1, r.Free())
}

func TestRingExactFill(t *testing.T) {
	r := testRing(t)
	require.NoError(t, r.Push(pattern(100), BD{}))
	assert.Equal(t, 2, r.Free())

	// An exact fill is legal and wraps the write pointer back onto the
	// read pointer.
	require.NoError(t, r.Push(pattern(100), BD{}))
	assert.Equal(t, r.Desc.RdPtr(), r.Desc.WrPtr())

	// The unconsumed descriptor at the write slot marks the ring full
	// even though the pointer formula reads it as empty.
	assert.ErrorIs(t, r.Push(pattern(1), BD{}), ErrNoSpace)

	// A full ring still drains, and draining reopens the slot.
	data, _, ok := r.Pop()
	require.True(t, ok)
	assert.True(t, bytes.Equal(pattern(100), data))
	require.NoError(t, r.Push(pattern(100), BD{}))
}

func TestRingPushRejectsOversize(t *testing.T) {
	r := testRing(t)
	require.NoError(t, r.Push(pattern(130), BD{})) // 3 blocks
	assert.ErrorIs(t, r.Push(pattern(100), BD{}), ErrNoSpace)
	require.NoError(t, r.Push(pattern(60), BD{}))
}

func TestRingPushPublishOrder(t *testing.T) {
	r := testRing(t)
	data := pattern(100)
	require.NoError(t, r.Push(data, BD{Port: 1}))

	// Descriptor word lands at the slot the write pointer had before
	// the push.
	bd := ParseBD(r.BDs.U32(0x100))
	assert.Equal(t, 100, bd.Length)
	assert.Equal(t, 1, bd.Port)
	assert.Equal(t, uint16(0x108), r.Desc.WrPtr())
	assert.True(t, bytes.Equal(data, []byte(r.Buffer[:100])))
}

func TestRingWrapSplitCopy(t *testing.T) {
	r := testRing(t)
	// Advance both pointers to the last slot so a two block payload has
	// to wrap.
	r.Desc.SetRdPtr(0x10c)
	r.Desc.SetWrPtr(0x10c)

	data := pattern(100)
	require.NoError(t, r.Push(data, BD{}))
	assert.True(t, bytes.Equal(data[:64], []byte(r.Buffer[192:256])))
	assert.True(t, bytes.Equal(data[64:], []byte(r.Buffer[0:36])))
	assert.Equal(t, uint16(0x104), r.Desc.WrPtr())

	assert.True(t, bytes.Equal(data, r.copyOut(3, 100)))
}

func TestRingLinearNoWrap(t *testing.T) {
	r := testRing(t)
	r.Linear = true
	r.Rewind()

	data := pattern(100)
	require.NoError(t, r.Push(data, BD{}))
	assert.True(t, bytes.Equal(data, []byte(r.Buffer[:100])))
	assert.True(t, bytes.Equal(data, r.copyOut(0, 100)))
}

func TestRingPushRejectsCorruptPointers(t *testing.T) {
	r := testRing(t)
	r.Desc.SetWrPtr(0x1f2)
	err := r.Push(pattern(60), BD{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoSpace)
}

func TestBDRoundTrip(t *testing.T) {
	bd := BD{
		Length:      1522,
		Port:        2,
		Shadow:      true,
		StartOffset: true,
		RedFrame:    true,
		Broadcast:   true,
	}
	assert.Equal(t, bd, ParseBD(bd.Word()))

	assert.Equal(t, BD{}, ParseBD(0))
}

func TestDescClearBusyIdempotent(t *testing.T) {
	r := testRing(t)
	r.Desc.SetStatus(fwmap.QueueBusyMaster)
	r.Desc.SetBusyS()
	r.Desc.ClearBusyS()
	before := r.Desc.Status()

	r.Desc.ClearBusyS()
	assert.False(t, r.Desc.BusyS())
	assert.Equal(t, before, r.Desc.Status())
}
