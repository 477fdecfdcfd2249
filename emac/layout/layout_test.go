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

package layout

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/shmem"
)

func testMap(t *testing.T) *shmem.Map {
	t.Helper()
	return shmem.NewMap(
		make([]byte, 0x2000),
		make([]byte, 0x2000),
		make([]byte, 0x8000),
		make([]byte, 0x10000),
	)
}

func TestDeriveDeterministic(t *testing.T) {
	for _, basis := range []Basis{BasisEMAC, BasisSwitch} {
		a, err := Derive(DefaultConfig(basis))
		require.NoError(t, err)
		b, err := Derive(DefaultConfig(basis))
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(a, b))
	}
}

func TestDeriveSwitchContiguous(t *testing.T) {
	l, err := Derive(DefaultConfig(BasisSwitch))
	require.NoError(t, err)

	assert.Equal(t, uint16(fwmap.P0Q1BufferOffset), l.HostRx[0].BufferOffset)
	assert.Equal(t, uint16(fwmap.P0Q1BDOffset), l.HostRx[0].BDOffset)

	var queues []Queue
	for q := 0; q < fwmap.NumQueues; q++ {
		queues = append(queues, l.HostRx[q])
	}
	for p := 1; p < NumPorts; p++ {
		for q := 0; q < fwmap.NumQueues; q++ {
			queues = append(queues, l.Tx[p][q])
		}
	}
	for i := 1; i < len(queues); i++ {
		assert.Equal(t, queues[i-1].BufferEnd, queues[i].BufferOffset, "queue %d", i)
		assert.Equal(t, queues[i-1].BDEnd+fwmap.BDSize, queues[i].BDOffset, "queue %d", i)
	}

	last := queues[len(queues)-1]
	assert.LessOrEqual(t, int(last.BufferEnd), fwmap.P0ColBufferOffset)
	assert.Equal(t, last.BDEnd+fwmap.BDSize, l.EOFBufferBD)

	// Collision queues: fixed buffer base, descriptors after the pool.
	assert.Equal(t, uint16(fwmap.P0ColBufferOffset), l.Col[0].BufferOffset)
	assert.Equal(t, l.EOFBufferBD, l.Col[0].BDOffset)
	for p := 1; p < NumPorts; p++ {
		assert.Equal(t, l.Col[p-1].BufferEnd, l.Col[p].BufferOffset)
		assert.Equal(t, l.Col[p-1].BDEnd+fwmap.BDSize, l.Col[p].BDOffset)
	}
}

func TestDeriveBDCounts(t *testing.T) {
	l, err := Derive(DefaultConfig(BasisSwitch))
	require.NoError(t, err)

	count := func(q Queue) int {
		return int(q.BDEnd-q.BDOffset)/fwmap.BDSize + 1
	}
	assert.Equal(t, 254, count(l.HostRx[0]))
	assert.Equal(t, 134, count(l.HostRx[1]))
	assert.Equal(t, 97, count(l.Tx[1][0]))
	assert.Equal(t, DefaultColSize, count(l.Col[2]))
}

func TestDeriveEMACDescriptorPlacement(t *testing.T) {
	l, err := Derive(DefaultConfig(BasisEMAC))
	require.NoError(t, err)

	for q := 0; q < fwmap.NumQueues; q++ {
		assert.Equal(t, shmem.SharedRAM, l.HostRx[q].Desc.Region)
		assert.Greater(t, l.HostRx[q].Desc.Offset, l.EOFBufferBD)
	}
	assert.Equal(t, shmem.DRAM0, l.Tx[1][0].Desc.Region)
	assert.Equal(t, shmem.DRAM1, l.Tx[2][0].Desc.Region)
	assert.Equal(t, uint16(fwmap.PortQueueDescOffset), l.Tx[1][0].Desc.Offset)
	assert.Equal(t, l.Tx[1][0].Desc.Offset, l.Tx[2][0].Desc.Offset)
}

func TestDeriveRejectsTinyQueue(t *testing.T) {
	cfg := DefaultConfig(BasisSwitch)
	cfg.Tx[2] = 1
	_, err := Derive(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig(BasisSwitch)
	cfg.ColSize = 0
	_, err = Derive(cfg)
	assert.Error(t, err)
}

func TestDeriveRejectsOversizedPool(t *testing.T) {
	cfg := DefaultConfig(BasisSwitch)
	cfg.HostRx = [fwmap.NumQueues]int{500, 500, 500, 500}
	_, err := Derive(cfg)
	assert.Error(t, err)
}

func TestLookupOutOfRange(t *testing.T) {
	l, err := Derive(DefaultConfig(BasisSwitch))
	require.NoError(t, err)

	assert.Equal(t, uint16(fwmap.InvalidOffset), l.BufferOffset(0, 0))
	assert.Equal(t, uint16(fwmap.InvalidOffset), l.BufferOffset(3, 0))
	assert.Equal(t, uint16(fwmap.InvalidOffset), l.BDOffset(1, 4))
	assert.Equal(t, uint16(fwmap.InvalidOffset), l.BDOffset(1, -1))
	assert.NotEqual(t, uint16(fwmap.InvalidOffset), l.BDOffset(1, 0))
}

func TestProgramSwitch(t *testing.T) {
	l, err := Derive(DefaultConfig(BasisSwitch))
	require.NoError(t, err)
	m := testMap(t)
	l.Program(m)
	d1 := m.DRAM1()

	// Every queue descriptor starts empty at its descriptor base.
	for q := 0; q < fwmap.NumQueues; q++ {
		off := int(l.HostRx[q].Desc.Offset)
		assert.Equal(t, l.HostRx[q].BDOffset, d1.U16(off+fwmap.QDescRdPtr))
		assert.Equal(t, l.HostRx[q].BDOffset, d1.U16(off+fwmap.QDescWrPtr))
		assert.Zero(t, d1.U8(off+fwmap.QDescStatus))
	}

	// Host receive context.
	assert.Equal(t, l.HostRx[0].BufferOffset,
		d1.U16(fwmap.P0Q1RxContextOffset+fwmap.QInfoBufferOffset))
	assert.Equal(t, l.HostRx[0].BDEnd,
		d1.U16(fwmap.P0Q1RxContextOffset+fwmap.QInfoBDEnd))

	// Transmit context carries the buffer end in the second field.
	assert.Equal(t, l.Tx[1][0].BufferEnd,
		d1.U16(fwmap.TxContextP1Q1OffsetAddr+fwmap.QInfoQueueDescOff))

	// Lookup tables, port major.
	i := (2*fwmap.NumQueues + 3) * 2
	assert.Equal(t, l.Tx[2][3].Desc.Offset, d1.U16(fwmap.QueueDescriptorOffsetAddr+i))
	assert.Equal(t, l.Tx[2][3].BufferOffset, d1.U16(fwmap.QueueOffsetAddr+i))
	assert.Equal(t, uint16(97), d1.U16(fwmap.QueueSizeAddr+i))

	// Collision contexts and status bytes.
	assert.Equal(t, l.Col[0].Desc.Offset,
		d1.U16(fwmap.ColRxContextP0OffsetAddr+fwmap.ColRxQueueDescOff))
	for p := 0; p < NumPorts; p++ {
		assert.Zero(t, d1.U8(fwmap.CollisionStatusAddr+p))
	}
}

func TestProgramEMAC(t *testing.T) {
	l, err := Derive(DefaultConfig(BasisEMAC))
	require.NoError(t, err)
	m := testMap(t)
	l.Program(m)

	sram := m.SharedRAM()
	for q := 0; q < fwmap.NumQueues; q++ {
		off := int(l.HostRx[q].Desc.Offset)
		assert.Equal(t, l.HostRx[q].BDOffset, sram.U16(off+fwmap.QDescRdPtr))
		assert.Equal(t, l.HostRx[q].BDOffset, sram.U16(off+fwmap.QDescWrPtr))
	}

	// The trailing desc, offset and size tables hold one 16 bit word per
	// queue, packed consecutively.
	base := int(l.EOFBufferBD)
	for q := 0; q < fwmap.NumQueues; q++ {
		assert.Equal(t, l.HostRx[q].Desc.Offset,
			sram.U16(base+emacTrailDescTable+2*q), "queue %d", q)
		assert.Equal(t, l.HostRx[q].BufferOffset,
			sram.U16(base+emacTrailOffTable+2*q), "queue %d", q)
		assert.Equal(t, uint16(l.HostRx[q].Blocks),
			sram.U16(base+emacTrailSizeTable+2*q), "queue %d", q)
	}

	for p := 1; p < NumPorts; p++ {
		dram := m.Region(PortDRAM(p))
		off := int(l.Tx[p][0].Desc.Offset)
		assert.Equal(t, l.Tx[p][0].BDOffset, dram.U16(off+fwmap.QDescRdPtr))
		assert.Equal(t, l.Tx[p][0].BufferEnd,
			dram.U16(fwmap.TxContextQ1OffsetAddr+fwmap.QInfoQueueDescOff))
	}
}
