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
	"github.com/prunet/prunet/pkg/shmem"
)

// Desc gives field access to a queue descriptor record. The record is
// shared with the firmware, so every access goes straight to the region
// and nothing is cached.
type Desc struct {
	r   shmem.Region
	off int
}

// NewDesc returns an accessor for the record at off.
func NewDesc(r shmem.Region, off uint16) Desc {
	return Desc{r: r, off: int(off)}
}

func (d Desc) RdPtr() uint16        { return d.r.U16(d.off + fwmap.QDescRdPtr) }
func (d Desc) SetRdPtr(v uint16)    { d.r.SetU16(d.off+fwmap.QDescRdPtr, v) }
func (d Desc) WrPtr() uint16        { return d.r.U16(d.off + fwmap.QDescWrPtr) }
func (d Desc) SetWrPtr(v uint16)    { d.r.SetU16(d.off+fwmap.QDescWrPtr, v) }
func (d Desc) BusyS() bool          { return d.r.U8(d.off+fwmap.QDescBusyS) != 0 }
func (d Desc) SetBusyS()            { d.r.SetU8(d.off+fwmap.QDescBusyS, 1) }
func (d Desc) ClearBusyS()          { d.r.SetU8(d.off+fwmap.QDescBusyS, 0) }
func (d Desc) Status() uint8        { return d.r.U8(d.off + fwmap.QDescStatus) }
func (d Desc) SetStatus(v uint8)    { d.r.SetU8(d.off+fwmap.QDescStatus, v) }
func (d Desc) MaxFill() uint8       { return d.r.U8(d.off + fwmap.QDescMaxFill) }
func (d Desc) OverflowCnt() uint8   { return d.r.U8(d.off + fwmap.QDescOverflowCnt) }
func (d Desc) ClearOverflowCnt()    { d.r.SetU8(d.off+fwmap.QDescOverflowCnt, 0) }

// HarvestOverflow returns the firmware overflow discard count and resets
// both the counter and the overflow status bit. It returns zero when the
// overflow status bit is not set.
func (d Desc) HarvestOverflow() int {
	status := d.Status()
	if status&fwmap.QueueDiscardOvfl == 0 {
		return 0
	}
	n := int(d.OverflowCnt())
	d.ClearOverflowCnt()
	d.SetStatus(status &^ fwmap.QueueDiscardOvfl)
	return n
}
