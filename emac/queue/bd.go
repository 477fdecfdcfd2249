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

import "github.com/prunet/prunet/pkg/fwmap"

// BD is the decoded form of one buffer descriptor word. A packet occupies
// one descriptor slot per payload block, but only the first slot carries a
// nonzero word.
type BD struct {
	// Length is the payload length in bytes.
	Length int
	// Port attributes the frame to a MII port, 1 or 2. Zero means
	// unattributed.
	Port int
	// Shadow marks a payload that lives in the collision buffer instead
	// of the queue's own buffer.
	Shadow bool
	// StartOffset marks a payload with a redundancy tag prepended.
	StartOffset bool
	// RedFrame marks a frame subject to redundancy tag handling.
	RedFrame bool
	Broadcast bool
	Error     bool
}

// Word encodes the descriptor.
func (bd BD) Word() uint32 {
	w := uint32(bd.Length) << fwmap.BDLengthShift & fwmap.BDLengthMask
	w |= uint32(bd.Port) << fwmap.BDPortShift & fwmap.BDPortMask
	if bd.Shadow {
		w |= fwmap.BDShadowMask
	}
	if bd.StartOffset {
		w |= fwmap.BDStartOffsetMask
	}
	if bd.RedFrame {
		w |= fwmap.BDRedFrameMask
	}
	if bd.Broadcast {
		w |= fwmap.BDBroadcastMask
	}
	if bd.Error {
		w |= fwmap.BDErrorMask
	}
	return w
}

// ParseBD decodes a descriptor word.
func ParseBD(w uint32) BD {
	return BD{
		Length:      int(w & fwmap.BDLengthMask >> fwmap.BDLengthShift),
		Port:        int(w & fwmap.BDPortMask >> fwmap.BDPortShift),
		Shadow:      w&fwmap.BDShadowMask != 0,
		StartOffset: w&fwmap.BDStartOffsetMask != 0,
		RedFrame:    w&fwmap.BDRedFrameMask != 0,
		Broadcast:   w&fwmap.BDBroadcastMask != 0,
		Error:       w&fwmap.BDErrorMask != 0,
	}
}
