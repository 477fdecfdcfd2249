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

package fwmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prunet/prunet/pkg/fwmap"
)

// The offsets below are part of the firmware interface. The assertions pin
// the derived values so an edit to one base constant cannot silently shift a
// table the firmware addresses absolutely.

func TestNodeTableDerivedOffsets(t *testing.T) {
	assert.Equal(t, 0x3100+129*32, fwmap.NodeTableEnd)
	assert.Equal(t, 130, fwmap.IndexArraySize)
	assert.Equal(t, 129, fwmap.IndexLastGuard)
	assert.Equal(t, uint32(129)<<8, fwmap.IndexArrayInit)
	assert.Equal(t, 0x3100+32, fwmap.NextFreeAddressNTQueueInit)

	// The node table must not run into the LRE statistics block.
	assert.LessOrEqual(t, fwmap.NodeTableEnd, fwmap.LREStart)
}

func TestLREDerivedOffsets(t *testing.T) {
	assert.Equal(t, 0x6004, fwmap.LRECntTxA)
	assert.Equal(t, fwmap.LRECntTxA+4*12, fwmap.LRECntNodes)
	assert.Equal(t, fwmap.LRECntTxA+4*25, fwmap.LREDuplicateDiscard)
	assert.Equal(t, fwmap.LRECntTxA+4*26, fwmap.LRETransparentReception)
	assert.Equal(t, 4*28, fwmap.LREStatsSize)
}

func TestBDWordFieldsDisjoint(t *testing.T) {
	fields := []uint32{
		fwmap.BDStartOffsetMask,
		fwmap.BDRedFrameMask,
		fwmap.BDShadowMask,
		fwmap.BDPortMask,
		fwmap.BDLengthMask,
		fwmap.BDBroadcastMask,
		fwmap.BDErrorMask,
	}
	var seen uint32
	for _, f := range fields {
		assert.Zero(t, seen&f, "overlapping BD field 0x%08x", f)
		seen |= f
	}
	// The length field must hold the largest tagged frame.
	assert.LessOrEqual(t, uint32(fwmap.MaxFrameSizeRed),
		uint32(fwmap.BDLengthMask>>fwmap.BDLengthShift))
}

func TestCollisionBufferFits(t *testing.T) {
	// Three back to back collision buffers of 48 blocks must stay
	// addressable with 16 bit offsets.
	end := fwmap.P0ColBufferOffset + 3*48*fwmap.BlockSize
	assert.LessOrEqual(t, end, 0x10000)
}
