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

// Package emac is the host side of the PRU Ethernet data plane. It owns
// the shared memory regions, derives and programs the queue layout, and
// moves frames between the host and the firmware's block granular queues.
package emac

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/prunet/prunet/emac/layout"
	"github.com/prunet/prunet/emac/lre"
	"github.com/prunet/prunet/emac/queue"
	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/log"
	"github.com/prunet/prunet/pkg/private/serrors"
	"github.com/prunet/prunet/pkg/shmem"
)

// DefaultRxQuota bounds the frames lifted per drain pass so one busy
// queue cannot starve the rest of the loop.
const DefaultRxQuota = 64

// DataplaneConfig configures a Dataplane.
type DataplaneConfig struct {
	Protocol Protocol
	// Queues overrides the queue sizing. The zero value selects the
	// firmware defaults for the protocol's basis.
	Queues layout.Config
	// PCP overrides the VLAN priority to queue map. Nil derives it from
	// the receive queue sizing.
	PCP *PCPMap
	// RxQuota bounds frames per drain pass. Zero selects
	// DefaultRxQuota.
	RxQuota int
	IRQ     IRQController
	Metrics *Metrics
	Logger  log.Logger
}

// Dataplane drives one PRU Ethernet subsystem instance.
type Dataplane struct {
	protocol Protocol
	mem      *shmem.Map
	lay      *layout.Layout
	pcp      PCPMap
	ports    [layout.NumPorts]*Port
	rx       *queue.Receiver
	sup      *lre.Supervisor
	quota    int
	irq      IRQController
	metrics  *Metrics
	logger   log.Logger

	mu      sync.Mutex
	handler func(queue.Packet)
}

// New builds a Dataplane over the given memory map. The map is not
// touched until HostInit.
func New(m *shmem.Map, cfg DataplaneConfig) (*Dataplane, error) {
	if cfg.IRQ == nil {
		return nil, serrors.New("missing IRQ controller")
	}
	qcfg := cfg.Queues
	if qcfg.Geom.BlockSize == 0 {
		qcfg = layout.DefaultConfig(cfg.Protocol.Basis())
	}
	if qcfg.Basis != cfg.Protocol.Basis() {
		return nil, serrors.New("queue config basis mismatch",
			"config", qcfg.Basis, "protocol", cfg.Protocol)
	}
	lay, err := layout.Derive(qcfg)
	if err != nil {
		return nil, serrors.Wrap("deriving layout", err)
	}
	pcp := DefaultPCPMap(qcfg.HostRx)
	if cfg.PCP != nil {
		if err := cfg.PCP.Validate(); err != nil {
			return nil, err
		}
		pcp = *cfg.PCP
	}
	quota := cfg.RxQuota
	if quota <= 0 {
		quota = DefaultRxQuota
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Root()
	}

	dp := &Dataplane{
		protocol: cfg.Protocol,
		mem:      m,
		lay:      lay,
		pcp:      pcp,
		quota:    quota,
		irq:      cfg.IRQ,
		metrics:  cfg.Metrics,
		logger:   logger,
	}

	switched := cfg.Protocol.Basis() == layout.BasisSwitch
	maxFrame := fwmap.MaxFrameSize
	if cfg.Protocol.Red() {
		maxFrame = fwmap.MaxFrameSizeRed
	}

	rings := make([]*queue.Ring, fwmap.NumQueues)
	for q := 0; q < fwmap.NumQueues; q++ {
		rings[q] = dp.ring(lay.HostRx[q], false)
	}
	dp.rx = &queue.Receiver{
		Rings:         rings,
		MaxFrame:      maxFrame,
		AttributePort: switched,
	}
	if switched {
		dp.rx.Col = dp.ring(lay.Col[0], true)
		dp.rx.ColStatus = m.DRAM1()
	}
	if cfg.Protocol.Red() {
		dp.sup = lre.NewSupervisor(m, cfg.Protocol == ProtocolHSR)
	}

	for p := 1; p < layout.NumPorts; p++ {
		port := &Port{
			id:       p,
			dram:     m.Region(layout.PortDRAM(p)),
			pcp:      pcp,
			maxFrame: maxFrame,
			red:      cfg.Protocol.Red(),
			metrics:  cfg.Metrics,
			label:    strconv.Itoa(p),
		}
		if dp.sup != nil {
			port.onLink = func(up bool) {
				if up {
					dp.sup.PortUp()
				} else {
					dp.sup.PortDown()
				}
			}
		}
		for q := 0; q < fwmap.NumQueues; q++ {
			arb := &queue.Arbiter{
				Queue:   dp.ring(lay.Tx[p][q], false),
				Port:    p,
				QueueID: q,
			}
			if switched {
				arb.Col = dp.ring(lay.Col[p], true)
				arb.ColStatus = m.DRAM1()
			}
			port.arbiters[q] = arb
		}
		dp.ports[p] = port
	}
	return dp, nil
}

func (dp *Dataplane) ring(lq layout.Queue, linear bool) *queue.Ring {
	return &queue.Ring{
		Geom:         dp.lay.Geom,
		Buffer:       dp.mem.OCMC(),
		BDs:          dp.mem.SharedRAM(),
		BufferOffset: lq.BufferOffset,
		BufferEnd:    lq.BufferEnd,
		BDOffset:     lq.BDOffset,
		BDEnd:        lq.BDEnd,
		Linear:       linear,
		Desc:         queue.NewDesc(dp.mem.Region(lq.Desc.Region), lq.Desc.Offset),
	}
}

// Protocol returns the configured firmware personality.
func (dp *Dataplane) Protocol() Protocol { return dp.protocol }

// Layout returns the derived queue placement.
func (dp *Dataplane) Layout() *layout.Layout { return dp.lay }

// LRE returns the redundancy table supervisor, nil unless the protocol
// carries redundancy state.
func (dp *Dataplane) LRE() *lre.Supervisor { return dp.sup }

// Port returns the host handle for MII port 1 or 2, nil otherwise.
func (dp *Dataplane) Port(id int) *Port {
	if id < 1 || id >= layout.NumPorts {
		return nil
	}
	return dp.ports[id]
}

// HostInit brings the shared memory to the firmware's expected boot
// state: all regions zeroed, the layout tables programmed, the priority
// map written, the redundancy tables seeded on a red protocol and the
// link mirrors at their link-down defaults. It must run before the
// firmware starts and before Run.
func (dp *Dataplane) HostInit() {
	dp.mem.ZeroAll()
	dp.lay.Program(dp.mem)
	dp.pcp.Program(dp.mem.SharedRAM())
	if dp.protocol.Red() {
		lre.Init(dp.mem, dp.protocol == ProtocolHSR)
	}
	for p := 1; p < layout.NumPorts; p++ {
		dp.ports[p].SetLink(false, 0, false)
	}
	dp.logger.Info("Host memory initialized",
		"protocol", dp.protocol.String(), "basis", dp.lay.Basis.String())
}

// SetReceiveHandler installs the frame sink. Must be set before Run.
func (dp *Dataplane) SetReceiveHandler(h func(queue.Packet)) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.handler = h
}

// Run services the receive event until the context is canceled. On a red
// protocol it also runs the table maintenance ticks, which the supervisor
// suppresses while no port link is up.
func (dp *Dataplane) Run(ctx context.Context) error {
	if dp.sup != nil {
		dp.sup.Start()
		defer dp.sup.Stop()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer log.HandlePanic()
		return dp.rxLoop(ctx)
	})
	return g.Wait()
}

func (dp *Dataplane) rxLoop(ctx context.Context) error {
	for {
		if err := dp.irq.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		for {
			res := dp.rx.Drain(dp.quota, dp.deliver)
			dp.accountDrain(res)
			if !res.More {
				break
			}
		}
	}
}

func (dp *Dataplane) deliver(pkt queue.Packet) {
	if dp.metrics != nil {
		label := strconv.Itoa(pkt.Port)
		dp.metrics.RxPackets.WithLabelValues(label).Inc()
		dp.metrics.RxBytes.WithLabelValues(label).Add(float64(len(pkt.Data)))
	}
	dp.mu.Lock()
	h := dp.handler
	dp.mu.Unlock()
	if h != nil {
		h(pkt)
	}
}

func (dp *Dataplane) accountDrain(res queue.DrainResult) {
	if dp.metrics == nil {
		return
	}
	dp.metrics.RxDrains.Inc()
	if res.LengthErrors > 0 {
		dp.metrics.RxErrors.WithLabelValues("length").
			Add(float64(res.LengthErrors))
	}
	if res.PortErrors > 0 {
		dp.metrics.RxErrors.WithLabelValues("port").
			Add(float64(res.PortErrors))
	}
	if res.Overflows > 0 {
		dp.metrics.RxOverflows.Add(float64(res.Overflows))
	}
	if res.LengthErrors > 0 {
		dp.logger.Debug("Receive queue resynchronized",
			"count", res.LengthErrors)
	}
}
