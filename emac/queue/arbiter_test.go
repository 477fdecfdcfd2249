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

func testArbiter(t *testing.T) (*Arbiter, shmem.Region) {
	t.Helper()
	r := testRing(t)

	colBuf := make(shmem.Region, 512)
	colBDs := make(shmem.Region, 64)
	colDesc := make(shmem.Region, 8)
	col := &Ring{
		Geom:         r.Geom,
		Buffer:       colBuf,
		BDs:          colBDs,
		BufferOffset: 0,
		BufferEnd:    512,
		BDOffset:     0,
		BDEnd:        0x1c,
		Linear:       true,
		Desc:         NewDesc(colDesc, 0),
	}
	col.Rewind()

	status := make(shmem.Region, fwmap.CollisionStatusAddr+4)
	return &Arbiter{
		Queue:     r,
		Col:       col,
		ColStatus: status,
		Port:      1,
		QueueID:   2,
	}, status
}

func TestArbiterSendIdle(t *testing.T) {
	a, status := testArbiter(t)
	data := pattern(90)

	collided, err := a.Send(data, BD{Port: 1})
	require.NoError(t, err)
	assert.False(t, collided)
	assert.False(t, a.Queue.Desc.BusyS())
	assert.Zero(t, status.U8(fwmap.CollisionStatusAddr+1))
	assert.True(t, bytes.Equal(data, []byte(a.Queue.Buffer[:90])))
}

func TestArbiterSendMasterBusy(t *testing.T) {
	a, status := testArbiter(t)
	a.Queue.Desc.SetStatus(fwmap.QueueBusyMaster)
	data := pattern(90)

	collided, err := a.Send(data, BD{Port: 1})
	require.NoError(t, err)
	assert.True(t, collided)

	// The transmit queue is untouched, the collision buffer holds the
	// payload, and the status byte names the queue.
	assert.Equal(t, a.Queue.Desc.RdPtr(), a.Queue.Desc.WrPtr())
	assert.True(t, bytes.Equal(data, []byte(a.Col.Buffer[:90])))
	assert.Equal(t, uint8(2<<1|0x01), status.U8(fwmap.CollisionStatusAddr+1))
	// The host never claims a queue it lost.
	assert.False(t, a.Queue.Desc.BusyS())
}

func TestArbiterSendRaceLost(t *testing.T) {
	a, status := testArbiter(t)
	// The firmware grabs the queue inside the claim window, after the
	// host has already set busy_s.
	a.OnClaim = func() {
		a.Queue.Desc.SetStatus(fwmap.QueueBusyMaster)
	}
	data := pattern(90)

	collided, err := a.Send(data, BD{Port: 1})
	require.NoError(t, err)
	assert.True(t, collided)

	// The host backed off: busy_s released, transmit queue untouched,
	// payload diverted to the collision buffer.
	assert.False(t, a.Queue.Desc.BusyS())
	assert.Equal(t, a.Queue.Desc.RdPtr(), a.Queue.Desc.WrPtr())
	assert.Zero(t, a.Queue.BDs.U32(int(a.Queue.BDOffset)))
	assert.True(t, bytes.Equal(data, []byte(a.Col.Buffer[:90])))
	assert.Equal(t, uint8(2<<1|0x01), status.U8(fwmap.CollisionStatusAddr+1))
}

func TestArbiterSendColBusy(t *testing.T) {
	a, status := testArbiter(t)
	a.Queue.Desc.SetStatus(fwmap.QueueBusyMaster)
	status.SetU8(fwmap.CollisionStatusAddr+1, 0x01)

	collided, err := a.Send(pattern(90), BD{Port: 1})
	assert.True(t, collided)
	assert.ErrorIs(t, err, ErrColBusy)
}

func TestArbiterSendNoSpace(t *testing.T) {
	a, _ := testArbiter(t)
	require.NoError(t, a.Queue.Push(pattern(100), BD{}))
	require.NoError(t, a.Queue.Push(pattern(60), BD{}))

	collided, err := a.Send(pattern(100), BD{})
	assert.False(t, collided)
	assert.ErrorIs(t, err, ErrNoSpace)
	assert.False(t, a.Queue.Desc.BusyS())
}

func TestArbiterSendWithoutCollisionQueue(t *testing.T) {
	a, _ := testArbiter(t)
	a.Col = nil
	a.Queue.Desc.SetStatus(fwmap.QueueBusyMaster)

	// Without a collision queue there is no arbitration and the status
	// byte is not consulted.
	collided, err := a.Send(pattern(90), BD{})
	require.NoError(t, err)
	assert.False(t, collided)
	assert.NotEqual(t, a.Queue.Desc.RdPtr(), a.Queue.Desc.WrPtr())
}
