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

package lre

import (
	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/shmem"
)

// lreStatNames lists the LRE counters in block order, starting at
// LRECntTxA. The duplicate discard and transparent reception words are
// policy state living inside the block.
var lreStatNames = []string{
	"lreTxA",
	"lreTxB",
	"lreTxC",
	"lreErrWrongLanA",
	"lreErrWrongLanB",
	"lreErrWrongLanC",
	"lreRxA",
	"lreRxB",
	"lreRxC",
	"lreErrorsA",
	"lreErrorsB",
	"lreErrorsC",
	"lreNodes",
	"lreProxyNodes",
	"lreUniqueRxA",
	"lreUniqueRxB",
	"lreUniqueRxC",
	"lreDuplicateRxA",
	"lreDuplicateRxB",
	"lreDuplicateRxC",
	"lreMultiRxA",
	"lreMultiRxB",
	"lreMultiRxC",
	"lreOwnRxA",
	"lreOwnRxB",
	"lreDupDiscard",
	"lreTransRecept",
	"lreNtLookupErr",
}

// StatNames returns the LRE counter names in block order.
func StatNames() []string {
	out := make([]string, len(lreStatNames))
	copy(out, lreStatNames)
	return out
}

// Stats is a snapshot of the LRE statistics block.
type Stats struct {
	values [fwmap.LREStatsWords]uint32
}

// ReadStats snapshots the LRE statistics block.
func ReadStats(m *shmem.Map) Stats {
	var s Stats
	sram := m.SharedRAM()
	for i := range s.values {
		s.values[i] = sram.U32(fwmap.LRECntTxA + 4*i)
	}
	return s
}

// Values returns the counters in block order, matching StatNames.
func (s Stats) Values() []uint32 {
	out := make([]uint32, len(s.values))
	copy(out, s.values[:])
	return out
}

// Get returns a counter by name.
func (s Stats) Get(name string) (uint32, bool) {
	for i, n := range lreStatNames {
		if n == name {
			return s.values[i], true
		}
	}
	return 0, false
}

// policy word indices within the block.
const (
	dupDiscardIdx  = (fwmap.LREDuplicateDiscard - fwmap.LRECntTxA) / 4
	transReceptIdx = (fwmap.LRETransparentReception - fwmap.LRECntTxA) / 4
)

// RestoreStats writes a snapshot back, for example across a firmware
// restart. The two policy words keep their live values; only the
// counters are restored.
func RestoreStats(m *shmem.Map, s Stats) {
	sram := m.SharedRAM()
	for i, v := range s.values {
		if i == dupDiscardIdx || i == transReceptIdx {
			continue
		}
		sram.SetU32(fwmap.LRECntTxA+4*i, v)
	}
}
