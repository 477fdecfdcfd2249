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

package emac

import (
	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/private/serrors"
	"github.com/prunet/prunet/pkg/shmem"
)

// PCPMap maps each VLAN priority code point to a receive queue index.
// Queue 0 is the highest priority.
type PCPMap [fwmap.NumVlanPCP]uint8

// DefaultPCPMap derives the map from the receive queue sizing. PCP pairs
// map high to low onto queues 0 to 3, except that a queue without room for
// a packet is skipped and its pair falls through to the next lower
// priority queue. The lowest priority queue always takes part.
func DefaultPCPMap(hostRx [fwmap.NumQueues]int) PCPMap {
	var m PCPMap
	for pcp := 0; pcp < fwmap.NumVlanPCP; pcp++ {
		q := fwmap.NumQueues - 1 - pcp/2
		for q < fwmap.NumQueues-1 && hostRx[q] < 2 {
			q++
		}
		m[pcp] = uint8(q)
	}
	return m
}

// Validate checks that every entry names a queue.
func (m PCPMap) Validate() error {
	for pcp, q := range m {
		if int(q) >= fwmap.NumQueues {
			return serrors.New("pcp map entry out of range",
				"pcp", pcp, "queue", q)
		}
	}
	return nil
}

// Program writes the map into shared RAM, one queue id per byte, PCP 0
// first.
func (m PCPMap) Program(sram shmem.Region) {
	for pcp, q := range m {
		sram.SetU8(fwmap.QueuePCPMapOffset+pcp, q)
	}
}

// ReadPCPMap reads the programmed map back.
func ReadPCPMap(sram shmem.Region) PCPMap {
	var m PCPMap
	for pcp := range m {
		m[pcp] = sram.U8(fwmap.QueuePCPMapOffset + pcp)
	}
	return m
}
