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
	"context"
	"sync"
	"time"

	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/shmem"
	"github.com/prunet/prunet/private/periodic"
)

// TickPeriod is the table maintenance cadence. It matches the check
// resolution programmed into the firmware.
const TickPeriod = 10 * time.Millisecond

// Supervisor drives the firmware's table maintenance: every tick it arms
// the check flags the firmware consumes, and it carries the one shot node
// table clear request. Ticks are suppressed while no port is up, so an
// idle system leaves the flags untouched.
type Supervisor struct {
	d1  shmem.Region
	hsr bool

	mu           sync.Mutex
	activePorts  int
	clearPending bool

	runner *periodic.Runner
}

// NewSupervisor returns a stopped Supervisor over the map's DRAM1.
func NewSupervisor(m *shmem.Map, hsr bool) *Supervisor {
	return &Supervisor{d1: m.DRAM1(), hsr: hsr}
}

// Start begins ticking. Must be balanced with Stop.
func (s *Supervisor) Start() {
	s.runner = periodic.Start(s, TickPeriod, TickPeriod)
}

// Stop halts the ticking and waits for an in progress tick.
func (s *Supervisor) Stop() {
	if s.runner != nil {
		s.runner.Stop()
		s.runner = nil
	}
}

// PortUp records a port becoming operational.
func (s *Supervisor) PortUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePorts++
}

// PortDown records a port going away. With the last port gone the
// supervisor stops arming checks.
func (s *Supervisor) PortDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activePorts > 0 {
		s.activePorts--
	}
}

// RequestNodeTableClear asks the firmware to flush the node table on the
// next tick. The clear bit is armed for exactly one tick.
func (s *Supervisor) RequestNodeTableClear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearPending = true
}

// Name implements periodic.Task.
func (s *Supervisor) Name() string {
	return "lre_table_supervisor"
}

// Run implements periodic.Task.
func (s *Supervisor) Run(context.Context) {
	s.mu.Lock()
	active := s.activePorts > 0
	clearReq := false
	if active {
		// Consume the clear request only on a tick that writes it out.
		clearReq = s.clearPending
		s.clearPending = false
	}
	s.mu.Unlock()
	if !active {
		return
	}

	mask := uint32(fwmap.TimerNodeTableCheckBit | fwmap.TimerHostTableCheckBit)
	if s.hsr {
		mask |= fwmap.TimerPortTableCheckBits
	}
	if clearReq {
		mask |= fwmap.TimerNodeTableClearBit
	}
	s.d1.SetU32(fwmap.HostTimerCheckFlags, mask)
}
