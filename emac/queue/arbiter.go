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
	"github.com/prunet/prunet/pkg/private/serrors"
	"github.com/prunet/prunet/pkg/shmem"
)

// ErrColBusy reports that the collision queue still holds an unconsumed
// packet.
var ErrColBusy = serrors.New("collision queue busy")

// Arbiter serializes host writes to one transmit queue against the
// firmware's own writes. On the switch basis the firmware may enqueue
// cut-through traffic into the same queue; the descriptor's busy bytes
// arbitrate, and the loser diverts the packet to the port's collision
// queue. Without a collision queue the host is the sole writer and Send is
// a plain push.
type Arbiter struct {
	Queue *Ring
	// Col is the port's collision queue, nil on the EMAC basis.
	Col *Ring
	// ColStatus is the region holding the per-port collision status
	// bytes, nil when Col is nil.
	ColStatus shmem.Region
	// Port is the transmit port id, 1 or 2.
	Port int
	// QueueID is the queue's index within the port, 0 based.
	QueueID int

	// OnClaim, when non nil, runs between setting busy_s and the status
	// re-read. The claim window is where the firmware can still take the
	// queue; test harnesses inject peer busy transitions here to drive
	// the race loss path.
	OnClaim func()
}

// Send enqueues one packet, diverting to the collision queue when the
// firmware holds the transmit queue. It reports whether the collision path
// was taken.
func (a *Arbiter) Send(data []byte, bd BD) (bool, error) {
	if a.Col == nil {
		return false, a.Queue.Push(data, bd)
	}

	claimed := false
	if a.Queue.Desc.Status()&fwmap.QueueBusyMaster == 0 {
		a.Queue.Desc.SetBusyS()
		if a.OnClaim != nil {
			a.OnClaim()
		}
		// The firmware may have taken the queue between the status
		// read and the claim. Re-read and back off if it did.
		if a.Queue.Desc.Status()&fwmap.QueueBusyMaster != 0 {
			a.Queue.Desc.ClearBusyS()
		} else {
			claimed = true
		}
	}

	if claimed {
		err := a.Queue.Push(data, bd)
		a.Queue.Desc.ClearBusyS()
		return false, err
	}

	// Collision path. The status byte guards the single in-flight
	// collision packet per port.
	if a.ColStatus.U8(fwmap.CollisionStatusAddr+a.Port) != 0 {
		return true, ErrColBusy
	}
	a.Col.Rewind()
	if err := a.Col.Push(data, bd); err != nil {
		return true, err
	}
	a.ColStatus.SetU8(fwmap.CollisionStatusAddr+a.Port,
		uint8(a.QueueID<<1)|0x01)
	return true, nil
}
