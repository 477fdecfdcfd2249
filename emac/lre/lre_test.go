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

package lre_test

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prunet/prunet/emac/layout"
	"github.com/prunet/prunet/emac/lre"
	"github.com/prunet/prunet/emac/peertest"
	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/shmem"
)

func testSetup(t *testing.T, hsr bool) (*shmem.Map, *peertest.Firmware) {
	t.Helper()
	m := shmem.NewMap(
		make([]byte, 0x2000),
		make([]byte, 0x2000),
		make([]byte, 0x8000),
		make([]byte, 0x10000),
	)
	lay, err := layout.Derive(layout.DefaultConfig(layout.BasisSwitch))
	require.NoError(t, err)
	m.ZeroAll()
	lay.Program(m)
	lre.Init(m, hsr)
	return m, peertest.New(m, lay)
}

func mac(s string) net.HardwareAddr {
	m, err := net.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func TestInitWritesGuards(t *testing.T) {
	m, _ := testSetup(t, false)
	sram := m.SharedRAM()

	assert.Equal(t, uint32(fwmap.NodeTableGuard0Lo), sram.U32(fwmap.NodeTableOffset))
	assert.Equal(t, uint32(fwmap.NodeTableGuard0Hi), sram.U32(fwmap.NodeTableOffset+4))
	assert.Equal(t, uint32(fwmap.NodeTableGuard1Lo), sram.U32(fwmap.NodeTableEnd))
	assert.Equal(t, uint32(fwmap.NodeTableGuard1Hi), sram.U32(fwmap.NodeTableEnd+4))

	// Index array: skip marker at position 0, end guard right after.
	assert.Zero(t, sram.U8(fwmap.IndexArrayOffset))
	assert.Equal(t, uint8(fwmap.IndexLastGuard), sram.U8(fwmap.IndexArrayOffset+1))

	// Free slot queue covers every non guard entry.
	d0 := m.DRAM0()
	assert.Equal(t, uint32(fwmap.NodeTableOffset+fwmap.NodeTableEntrySize),
		d0.U32(fwmap.NextFreeAddressNTQueue))
	last := fwmap.NextFreeAddressNTQueue + 4*(fwmap.NodeTableSizeMax-1)
	assert.Equal(t,
		uint32(fwmap.NodeTableOffset+fwmap.NodeTableSizeMax*fwmap.NodeTableEntrySize),
		d0.U32(last))

	d1 := m.DRAM1()
	assert.Equal(t, uint32(fwmap.NodeForgetTime60000ms), d1.U32(fwmap.NodeForgetTime))
	assert.Equal(t, uint32(fwmap.SupAddressInitOctetsHigh), d1.U32(fwmap.SupAddr))
	assert.True(t, lre.DuplicateDiscard(m))
	assert.False(t, lre.TransparentReception(m))
}

func TestInitHSRMode(t *testing.T) {
	m, _ := testSetup(t, true)
	assert.Equal(t, fwmap.HSRModeH, lre.HSRMode(m))

	m, _ = testSetup(t, false)
	assert.Zero(t, lre.HSRMode(m))
}

func TestForgetTimeRoundsToTensOfMS(t *testing.T) {
	m, _ := testSetup(t, false)

	require.NoError(t, lre.SetNodeForgetTime(m, 60005))
	assert.Equal(t, 60000, lre.NodeForgetTime(m))

	require.NoError(t, lre.SetDuplicateForgetTime(m, 400))
	assert.Equal(t, 400, lre.DuplicateForgetTime(m))

	assert.Error(t, lre.SetNodeForgetTime(m, 0))
	assert.Error(t, lre.SetNodeForgetTime(m, lre.MaxForgetTimeMS+1))
}

func TestPolicyToggles(t *testing.T) {
	m, _ := testSetup(t, true)

	lre.SetDuplicateDiscard(m, false)
	assert.False(t, lre.DuplicateDiscard(m))
	lre.SetDuplicateDiscard(m, true)
	assert.True(t, lre.DuplicateDiscard(m))

	lre.SetTransparentReception(m, true)
	assert.True(t, lre.TransparentReception(m))

	require.NoError(t, lre.SetHSRMode(m, fwmap.HSRModeN))
	assert.Equal(t, fwmap.HSRModeN, lre.HSRMode(m))
	assert.Error(t, lre.SetHSRMode(m, 0))
	assert.Error(t, lre.SetHSRMode(m, fwmap.HSRModeM+1))
}

func TestReadNodeTable(t *testing.T) {
	m, fw := testSetup(t, false)

	danp := uint8(fwmap.NodeTypeDAN << fwmap.NodeStatusTypeShift)
	danh := danp | fwmap.NodeStatusHSRBit
	sana := uint8(fwmap.NodeTypeSANA << fwmap.NodeStatusTypeShift)
	require.NoError(t, fw.InsertNode(mac("02:00:00:00:00:01"), danp))
	require.NoError(t, fw.InsertNode(mac("02:00:00:00:00:02"), danh))
	require.NoError(t, fw.InsertNode(mac("02:00:00:00:00:03"), sana))

	nodes := lre.ReadNodeTable(m)
	require.Len(t, nodes, 3)
	assert.Equal(t, mac("02:00:00:00:00:01"), nodes[0].MAC)
	assert.Equal(t, lre.NodeTypeDANP, nodes[0].Type)
	assert.Equal(t, lre.NodeTypeDANH, nodes[1].Type)
	assert.Equal(t, lre.NodeTypeSANA, nodes[2].Type)
	for i, n := range nodes {
		assert.True(t, n.Valid, "node %d", i)
	}
	assert.Equal(t, uint32(3), lre.NodeCount(m))
}

func TestSupervisorArmsChecks(t *testing.T) {
	m, _ := testSetup(t, true)
	d1 := m.DRAM1()
	s := lre.NewSupervisor(m, true)

	// No ports up: the flags stay untouched.
	s.Run(nil)
	assert.Zero(t, d1.U32(fwmap.HostTimerCheckFlags))

	s.PortUp()
	s.Run(nil)
	want := uint32(fwmap.TimerNodeTableCheckBit | fwmap.TimerHostTableCheckBit |
		fwmap.TimerPortTableCheckBits)
	assert.Equal(t, want, d1.U32(fwmap.HostTimerCheckFlags))

	// The clear request is armed for exactly one tick; requesting twice
	// before the tick collapses into one.
	s.RequestNodeTableClear()
	s.RequestNodeTableClear()
	s.Run(nil)
	assert.Equal(t, want|fwmap.TimerNodeTableClearBit,
		d1.U32(fwmap.HostTimerCheckFlags))
	s.Run(nil)
	assert.Equal(t, want, d1.U32(fwmap.HostTimerCheckFlags))

	s.PortDown()
	d1.SetU32(fwmap.HostTimerCheckFlags, 0)
	s.Run(nil)
	assert.Zero(t, d1.U32(fwmap.HostTimerCheckFlags))
}

func TestSupervisorWithoutPortTableChecks(t *testing.T) {
	m, _ := testSetup(t, false)
	s := lre.NewSupervisor(m, false)
	s.PortUp()
	s.Run(nil)
	flags := m.DRAM1().U32(fwmap.HostTimerCheckFlags)
	assert.Zero(t, flags&fwmap.TimerPortTableCheckBits)
	assert.NotZero(t, flags&fwmap.TimerNodeTableCheckBit)
}

func TestNodeAgeOut(t *testing.T) {
	m, fw := testSetup(t, false)
	require.NoError(t, lre.SetNodeForgetTime(m, 1000))

	require.NoError(t, fw.InsertNode(mac("02:00:00:00:00:01"), 0))
	require.NoError(t, fw.InsertNode(mac("02:00:00:00:00:02"), 0))

	s := lre.NewSupervisor(m, false)
	s.PortUp()

	// Age one node beyond the forget time; refresh the other.
	fw.AgeNodes(150)
	sram := m.SharedRAM()
	base := fwmap.NodeTableOffset + 2*fwmap.NodeTableEntrySize
	sram.SetU16(base+fwmap.NodeEntTimeLastSeenA, 0)

	s.Run(nil)
	fw.RunTableCheck()

	nodes := lre.ReadNodeTable(m)
	require.Len(t, nodes, 1)
	assert.Equal(t, mac("02:00:00:00:00:02"), nodes[0].MAC)
	assert.Equal(t, uint32(1), lre.NodeCount(m))
}

func TestNodeTableClear(t *testing.T) {
	m, fw := testSetup(t, false)
	require.NoError(t, fw.InsertNode(mac("02:00:00:00:00:01"), 0))
	require.NoError(t, fw.InsertNode(mac("02:00:00:00:00:02"), 0))

	s := lre.NewSupervisor(m, false)
	s.PortUp()
	s.RequestNodeTableClear()
	s.Run(nil)
	fw.RunTableCheck()

	assert.Empty(t, lre.ReadNodeTable(m))
	assert.Zero(t, lre.NodeCount(m))

	// The table accepts inserts again after the flush.
	require.NoError(t, fw.InsertNode(mac("02:00:00:00:00:03"), 0))
	assert.Len(t, lre.ReadNodeTable(m), 1)
}

func TestStatsRestorePreservesPolicies(t *testing.T) {
	m, _ := testSetup(t, false)
	sram := m.SharedRAM()
	sram.SetU32(fwmap.LRECntTxA, 11)
	sram.SetU32(fwmap.LRECntNodes, 4)

	snap := lre.ReadStats(m)
	v, ok := snap.Get("lreTxA")
	require.True(t, ok)
	assert.Equal(t, uint32(11), v)

	// Simulate a firmware restart that wiped the block, with the host
	// having flipped a policy since the snapshot.
	for i := 0; i < fwmap.LREStatsWords; i++ {
		sram.SetU32(fwmap.LRECntTxA+4*i, 0)
	}
	lre.SetDuplicateDiscard(m, false)
	lre.SetTransparentReception(m, true)
	lre.RestoreStats(m, snap)

	assert.Equal(t, uint32(11), sram.U32(fwmap.LRECntTxA))
	assert.Equal(t, uint32(4), sram.U32(fwmap.LRECntNodes))
	assert.False(t, lre.DuplicateDiscard(m))
	assert.True(t, lre.TransparentReception(m))
}
