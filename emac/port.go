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

package emac

import (
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/prunet/prunet/emac/queue"
	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/private/serrors"
	"github.com/prunet/prunet/pkg/shmem"
)

// Port is the host side of one MII port. Send may be called concurrently
// with link updates, but at most one goroutine may transmit at a time per
// queue priority.
type Port struct {
	id       int
	dram     shmem.Region
	arbiters [fwmap.NumQueues]*queue.Arbiter
	pcp      PCPMap
	maxFrame int
	red      bool
	metrics  *Metrics
	label    string
	// onLink, when non nil, is told about link transitions. The dataplane
	// uses it to gate the redundancy supervisor on port state.
	onLink func(up bool)

	// mu guards the link state and its hardware mirror.
	mu         sync.Mutex
	linkUp     bool
	speedMbps  int
	fullDuplex bool
}

// ID returns the port id, 1 or 2.
func (p *Port) ID() int { return p.id }

// SetMAC writes the port's MAC address into its data RAM.
func (p *Port) SetMAC(mac net.HardwareAddr) error {
	if len(mac) != 6 {
		return serrors.New("invalid MAC address", "mac", mac.String())
	}
	p.dram.Copy(fwmap.PortMACAddr, mac)
	return nil
}

// MAC reads the programmed MAC address back.
func (p *Port) MAC() net.HardwareAddr {
	return net.HardwareAddr(p.dram.Bytes(fwmap.PortMACAddr, 6))
}

// SetLink mirrors a PHY state change into the firmware's view. On link
// down the firmware still needs a sane speed, so the mirror falls back to
// 100 Mbit/s full duplex.
func (p *Port) SetLink(up bool, speedMbps int, fullDuplex bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !up {
		speedMbps = 100
		fullDuplex = true
	}
	if p.onLink != nil && up != p.linkUp {
		p.onLink(up)
	}
	p.linkUp = up
	p.speedMbps = speedMbps
	p.fullDuplex = fullDuplex

	p.dram.SetU32(fwmap.PhySpeedOffset, uint32(speedMbps))
	var status uint8
	if up {
		status |= fwmap.PortStatusLink
	}
	if !fullDuplex {
		status |= fwmap.PortStatusHalfDX
	}
	p.dram.SetU8(fwmap.PortStatusOffset, status)
	if p.metrics != nil {
		v := 0.0
		if up {
			v = 1.0
		}
		p.metrics.LinkUp.WithLabelValues(p.label).Set(v)
	}
}

// LinkUp reports the mirrored link state.
func (p *Port) LinkUp() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.linkUp
}

// Enable flags the port as operational for the firmware.
func (p *Port) Enable() {
	p.dram.SetU8(fwmap.PortControlAddr, 1)
}

// Disable clears the operational flag.
func (p *Port) Disable() {
	p.dram.SetU8(fwmap.PortControlAddr, 0)
}

// Stats snapshots the firmware statistics block.
func (p *Port) Stats() PortStats {
	return ReadPortStats(p.dram)
}

func isBroadcast(frame []byte) bool {
	for _, b := range frame[:6] {
		if b != 0xff {
			return false
		}
	}
	return true
}

// Send enqueues one Ethernet frame for transmit at the given VLAN
// priority. Short frames are padded to the Ethernet minimum. ErrNoSpace
// asks the caller to back off and retry; other errors are final for this
// frame.
func (p *Port) Send(frame []byte, pcp int) error {
	if !p.LinkUp() {
		p.drop("link_down")
		return serrors.New("link down", "port", p.id)
	}
	if len(frame) < 14 {
		p.drop("runt")
		return serrors.New("frame too short", "len", len(frame))
	}
	if len(frame) > p.maxFrame {
		p.drop("oversize")
		return serrors.New("frame too long",
			"len", len(frame), "max", p.maxFrame)
	}
	if pcp < 0 || pcp >= fwmap.NumVlanPCP {
		pcp = 0
	}
	if len(frame) < fwmap.MinFrameSize {
		padded := make([]byte, fwmap.MinFrameSize)
		copy(padded, frame)
		frame = padded
	}

	q := int(p.pcp[pcp])
	bd := queue.BD{
		Port:      p.id,
		RedFrame:  p.red,
		Broadcast: isBroadcast(frame),
	}
	collided, err := p.arbiters[q].Send(frame, bd)
	if collided && p.metrics != nil {
		p.metrics.TxCollisions.WithLabelValues(p.label).Inc()
	}
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrNoSpace):
			p.drop("no_space")
		case errors.Is(err, queue.ErrColBusy):
			p.drop("collision_busy")
		default:
			p.drop("error")
		}
		return serrors.Wrap("enqueueing frame", err, "port", p.id, "queue", q)
	}
	if p.metrics != nil {
		p.metrics.TxPackets.WithLabelValues(p.label, strconv.Itoa(q)).Inc()
		p.metrics.TxBytes.WithLabelValues(p.label).Add(float64(len(frame)))
	}
	return nil
}

func (p *Port) drop(reason string) {
	if p.metrics != nil {
		p.metrics.TxDropped.WithLabelValues(p.label, reason).Inc()
	}
}
