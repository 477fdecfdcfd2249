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
	"github.com/prunet/prunet/pkg/private/serrors"
	"github.com/prunet/prunet/pkg/shmem"
)

// Forget time bounds in milliseconds. The firmware stores tens of
// milliseconds in 16 bit comparisons, which caps the range.
const (
	MinForgetTimeMS = 10
	MaxForgetTimeMS = 655350
)

func msToFW(ms int) (uint32, error) {
	if ms < MinForgetTimeMS || ms > MaxForgetTimeMS {
		return 0, serrors.New("forget time out of range",
			"ms", ms, "min", MinForgetTimeMS, "max", MaxForgetTimeMS)
	}
	return uint32(ms / 10), nil
}

// SetNodeForgetTime configures, in milliseconds, how long a silent node
// stays in the table. The value is stored in tens of milliseconds, so
// the remainder is dropped.
func SetNodeForgetTime(m *shmem.Map, ms int) error {
	v, err := msToFW(ms)
	if err != nil {
		return err
	}
	m.DRAM1().SetU32(fwmap.NodeForgetTime, v)
	return nil
}

// NodeForgetTime returns the configured forget time in milliseconds.
func NodeForgetTime(m *shmem.Map) int {
	return int(m.DRAM1().U32(fwmap.NodeForgetTime)) * 10
}

// SetDuplicateForgetTime configures, in milliseconds, how long a sequence
// number is remembered for duplicate elimination.
func SetDuplicateForgetTime(m *shmem.Map, ms int) error {
	v, err := msToFW(ms)
	if err != nil {
		return err
	}
	m.DRAM1().SetU32(fwmap.DupliForgetTime, v)
	return nil
}

// DuplicateForgetTime returns the configured duplicate forget time in
// milliseconds.
func DuplicateForgetTime(m *shmem.Map) int {
	return int(m.DRAM1().U32(fwmap.DupliForgetTime)) * 10
}

// SetDuplicateDiscard selects between discarding and accepting duplicate
// frames on delivery.
func SetDuplicateDiscard(m *shmem.Map, discard bool) {
	v := uint32(fwmap.DuplicateAccept)
	if discard {
		v = fwmap.DuplicateDiscard
	}
	m.SharedRAM().SetU32(fwmap.LREDuplicateDiscard, v)
}

// DuplicateDiscard reports whether duplicates are discarded.
func DuplicateDiscard(m *shmem.Map) bool {
	return m.SharedRAM().U32(fwmap.LREDuplicateDiscard) == fwmap.DuplicateDiscard
}

// SetTransparentReception selects whether the PRP redundancy control
// trailer is passed up or removed on delivery.
func SetTransparentReception(m *shmem.Map, passRCT bool) {
	v := uint32(fwmap.TransparentReceptionRemoveRCT)
	if passRCT {
		v = fwmap.TransparentReceptionPassRCT
	}
	m.SharedRAM().SetU32(fwmap.LRETransparentReception, v)
}

// TransparentReception reports whether the RCT is passed up.
func TransparentReception(m *shmem.Map) bool {
	return m.SharedRAM().U32(fwmap.LRETransparentReception) ==
		fwmap.TransparentReceptionPassRCT
}

// SetHSRMode selects the HSR operating submode.
func SetHSRMode(m *shmem.Map, mode int) error {
	if mode < fwmap.HSRModeH || mode > fwmap.HSRModeM {
		return serrors.New("invalid HSR mode", "mode", mode)
	}
	m.DRAM0().SetU32(fwmap.LREHSRMode, uint32(mode))
	return nil
}

// HSRMode returns the operating submode.
func HSRMode(m *shmem.Map) int {
	return int(m.DRAM0().U32(fwmap.LREHSRMode))
}
