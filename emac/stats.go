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
	"github.com/prunet/prunet/pkg/shmem"
)

// portStatNames lists the firmware statistics counters in block order.
// Each is a 32 bit word at StatisticsOffset in the port's data RAM.
var portStatNames = []string{
	"tx_bcast",
	"tx_mcast",
	"tx_ucast",
	"tx_octets",
	"rx_bcast",
	"rx_mcast",
	"rx_ucast",
	"rx_octets",
	"tx_64byte",
	"tx_65_127byte",
	"tx_128_255byte",
	"tx_256_511byte",
	"tx_512_1023byte",
	"tx_1024byte",
	"rx_64byte",
	"rx_65_127byte",
	"rx_128_255byte",
	"rx_256_511byte",
	"rx_512_1023byte",
	"rx_1024byte",
	"late_coll",
	"single_coll",
	"multi_coll",
	"excess_coll",
	"rx_misalignment_frames",
	"stormprev_counter",
	"mac_rxerror",
	"sfd_error",
	"def_tx",
	"mac_txerror",
	"rx_oversized_frames",
	"rx_undersized_frames",
	"rx_crc_frames",
	"dropped_packets",
	"tx_hwq_overflow",
	"cs_error",
	"sqe_test_error",
}

// PortStatNames returns the counter names in block order.
func PortStatNames() []string {
	out := make([]string, len(portStatNames))
	copy(out, portStatNames)
	return out
}

// PortStats is a snapshot of the firmware statistics block of one port.
type PortStats struct {
	values []uint32
}

// ReadPortStats snapshots the statistics block from a port's data RAM.
func ReadPortStats(dram shmem.Region) PortStats {
	v := make([]uint32, len(portStatNames))
	for i := range v {
		v[i] = dram.U32(fwmap.StatisticsOffset + 4*i)
	}
	return PortStats{values: v}
}

// Values returns the counters in block order, matching PortStatNames.
func (s PortStats) Values() []uint32 {
	out := make([]uint32, len(s.values))
	copy(out, s.values)
	return out
}

// Get returns a counter by name.
func (s PortStats) Get(name string) (uint32, bool) {
	for i, n := range portStatNames {
		if n == name {
			return s.values[i], true
		}
	}
	return 0, false
}
