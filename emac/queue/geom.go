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

// Geom fixes the block and descriptor granularity of a ring. The firmware
// geometry is DefaultGeom; other values are used to exercise the ring
// machinery at different granularities.
type Geom struct {
	// BlockSize is the buffer allocation unit in bytes.
	BlockSize int
	// BDSize is the size of one buffer descriptor slot in bytes.
	BDSize int
}

// DefaultGeom is the geometry the firmware is built with.
var DefaultGeom = Geom{
	BlockSize: fwmap.BlockSize,
	BDSize:    fwmap.BDSize,
}

// Blocks returns the number of whole blocks needed for n payload bytes.
func (g Geom) Blocks(n int) int {
	return (n + g.BlockSize - 1) / g.BlockSize
}
