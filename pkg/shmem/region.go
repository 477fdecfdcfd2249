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

// Package shmem models the flat memory regions shared between the host and
// the PRU firmware. A Region is a byte-addressed window into uncached RAM:
// every access goes to the backing store immediately, values are never
// cached in host structures, and all multi-byte fields are little endian as
// seen by the firmware.
package shmem

import (
	"encoding/binary"
)

// Region identifiers for the four address spaces the data plane touches.
type RegionID int

const (
	DRAM0 RegionID = iota // PRU0 private data RAM
	DRAM1                 // PRU1 private data RAM
	SharedRAM             // RAM shared by both PRUs
	OCMC                  // packet buffer pool
	NumRegions
)

func (r RegionID) String() string {
	switch r {
	case DRAM0:
		return "dram0"
	case DRAM1:
		return "dram1"
	case SharedRAM:
		return "sharedram"
	case OCMC:
		return "ocmc"
	}
	return "unknown"
}

// Region is raw access to one shared memory window. The backing slice is
// owned by the platform layer; the data plane only ever addresses it by
// byte offset.
type Region []byte

// U8 reads the byte at off.
func (r Region) U8(off int) uint8 {
	return r[off]
}

// SetU8 writes the byte at off.
func (r Region) SetU8(off int, v uint8) {
	r[off] = v
}

// U16 reads the little-endian 16-bit word at off.
func (r Region) U16(off int) uint16 {
	return binary.LittleEndian.Uint16(r[off:])
}

// SetU16 writes the little-endian 16-bit word at off.
func (r Region) SetU16(off int, v uint16) {
	binary.LittleEndian.PutUint16(r[off:], v)
}

// U32 reads the little-endian 32-bit word at off.
func (r Region) U32(off int) uint32 {
	return binary.LittleEndian.Uint32(r[off:])
}

// SetU32 writes the little-endian 32-bit word at off.
func (r Region) SetU32(off int, v uint32) {
	binary.LittleEndian.PutUint32(r[off:], v)
}

// Bytes returns the n bytes at off. The returned slice aliases the region.
func (r Region) Bytes(off, n int) []byte {
	return r[off : off+n]
}

// Copy copies p into the region at off.
func (r Region) Copy(off int, p []byte) {
	copy(r[off:], p)
}

// Zero clears n bytes starting at off.
func (r Region) Zero(off, n int) {
	clear(r[off : off+n])
}

// ZeroAll clears the whole region.
func (r Region) ZeroAll() {
	clear(r)
}

// Map groups the four regions a PRU subsystem exposes to the host.
type Map struct {
	regions [NumRegions]Region
}

// NewMap builds a region map from the platform-provided windows.
func NewMap(dram0, dram1, shared, ocmc Region) *Map {
	return &Map{regions: [NumRegions]Region{dram0, dram1, shared, ocmc}}
}

// Region returns the region with the given id.
func (m *Map) Region(id RegionID) Region {
	return m.regions[id]
}

// DRAM0 returns the PRU0 private data RAM.
func (m *Map) DRAM0() Region { return m.regions[DRAM0] }

// DRAM1 returns the PRU1 private data RAM.
func (m *Map) DRAM1() Region { return m.regions[DRAM1] }

// SharedRAM returns the RAM shared by both PRUs.
func (m *Map) SharedRAM() Region { return m.regions[SharedRAM] }

// OCMC returns the packet buffer pool.
func (m *Map) OCMC() Region { return m.regions[OCMC] }

// ZeroAll clears every region in the map.
func (m *Map) ZeroAll() {
	for _, r := range m.regions {
		r.ZeroAll()
	}
}
