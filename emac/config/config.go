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

// Package config holds the TOML configuration of the data plane daemon.
package config

import (
	"net"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/prunet/prunet/emac"
	"github.com/prunet/prunet/emac/layout"
	"github.com/prunet/prunet/emac/lre"
	"github.com/prunet/prunet/pkg/fwmap"
	"github.com/prunet/prunet/pkg/private/serrors"
)

// Config is the top level configuration.
type Config struct {
	// Protocol selects the firmware personality: emac, switch, hsr or
	// prp.
	Protocol string        `toml:"protocol,omitempty"`
	RxQuota  int           `toml:"rx_quota,omitempty"`
	Logging  LoggingConfig `toml:"log,omitempty"`
	Queues   QueueConfig   `toml:"queues,omitempty"`
	// PCP maps the eight VLAN priority code points to receive queues.
	// Empty derives the map from the queue sizing.
	PCP   []int                `toml:"pcp,omitempty"`
	Ports map[string]PortEntry `toml:"ports,omitempty"`
	LRE   LREConfig            `toml:"lre,omitempty"`
}

// LoggingConfig configures the console logger.
type LoggingConfig struct {
	// Level is one of debug, info or error.
	Level string `toml:"level,omitempty"`
}

// QueueConfig sizes the firmware queues in blocks. Zero values select the
// protocol defaults.
type QueueConfig struct {
	HostRx    []int `toml:"host_rx,omitempty"`
	Tx        []int `toml:"tx,omitempty"`
	Collision int   `toml:"collision,omitempty"`
}

// PortEntry configures one MII port. The map key is the port id.
type PortEntry struct {
	MAC string `toml:"mac,omitempty"`
}

// LREConfig configures the redundancy entity. Only consulted for hsr and
// prp.
type LREConfig struct {
	NodeForgetTimeMS      int  `toml:"node_forget_time_ms,omitempty"`
	DuplicateForgetTimeMS int  `toml:"duplicate_forget_time_ms,omitempty"`
	DuplicateAccept       bool `toml:"duplicate_accept,omitempty"`
	TransparentReception  bool `toml:"transparent_reception,omitempty"`
	// HSRMode is the HSR operating submode, 1 (H) through 5 (M).
	HSRMode int `toml:"hsr_mode,omitempty"`
}

// InitDefaults fills in the defaults for unset fields.
func (cfg *Config) InitDefaults() {
	if cfg.Protocol == "" {
		cfg.Protocol = "emac"
	}
	if cfg.RxQuota == 0 {
		cfg.RxQuota = emac.DefaultRxQuota
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.LRE.NodeForgetTimeMS == 0 {
		cfg.LRE.NodeForgetTimeMS = fwmap.NodeForgetTime60000ms * 10
	}
	if cfg.LRE.DuplicateForgetTimeMS == 0 {
		cfg.LRE.DuplicateForgetTimeMS = fwmap.DuplicateForgetTime400ms * 10
	}
	if cfg.LRE.HSRMode == 0 {
		cfg.LRE.HSRMode = fwmap.HSRModeH
	}
}

// ParsedProtocol returns the parsed protocol.
func (cfg *Config) ParsedProtocol() (emac.Protocol, error) {
	return emac.ParseProtocol(cfg.Protocol)
}

// Validate checks the configuration for consistency.
func (cfg *Config) Validate() error {
	proto, err := cfg.ParsedProtocol()
	if err != nil {
		return err
	}
	switch cfg.Logging.Level {
	case "debug", "info", "error":
	default:
		return serrors.New("invalid log level", "level", cfg.Logging.Level)
	}
	if _, err := cfg.QueueLayout(proto); err != nil {
		return err
	}
	if _, err := cfg.PCPMap(); err != nil {
		return err
	}
	for id, p := range cfg.Ports {
		if id != "1" && id != "2" {
			return serrors.New("invalid port id", "port", id)
		}
		if p.MAC != "" {
			if _, err := net.ParseMAC(p.MAC); err != nil {
				return serrors.Wrap("parsing port MAC", err, "port", id)
			}
		}
	}
	if proto.Red() {
		if cfg.LRE.HSRMode < fwmap.HSRModeH || cfg.LRE.HSRMode > fwmap.HSRModeM {
			return serrors.New("invalid HSR mode", "mode", cfg.LRE.HSRMode)
		}
		if cfg.LRE.NodeForgetTimeMS < lre.MinForgetTimeMS ||
			cfg.LRE.NodeForgetTimeMS > lre.MaxForgetTimeMS {
			return serrors.New("node forget time out of range",
				"ms", cfg.LRE.NodeForgetTimeMS)
		}
		if cfg.LRE.DuplicateForgetTimeMS < lre.MinForgetTimeMS ||
			cfg.LRE.DuplicateForgetTimeMS > lre.MaxForgetTimeMS {
			return serrors.New("duplicate forget time out of range",
				"ms", cfg.LRE.DuplicateForgetTimeMS)
		}
	}
	return nil
}

func sizes4(in []int, def [fwmap.NumQueues]int, name string) ([fwmap.NumQueues]int, error) {
	if len(in) == 0 {
		return def, nil
	}
	if len(in) != fwmap.NumQueues {
		return def, serrors.New("queue size list needs one entry per queue",
			"list", name, "len", len(in))
	}
	var out [fwmap.NumQueues]int
	copy(out[:], in)
	return out, nil
}

// QueueLayout builds the layout configuration for the protocol.
func (cfg *Config) QueueLayout(proto emac.Protocol) (layout.Config, error) {
	lc := layout.DefaultConfig(proto.Basis())
	var err error
	if lc.HostRx, err = sizes4(cfg.Queues.HostRx, lc.HostRx, "host_rx"); err != nil {
		return lc, err
	}
	if lc.Tx, err = sizes4(cfg.Queues.Tx, lc.Tx, "tx"); err != nil {
		return lc, err
	}
	if cfg.Queues.Collision != 0 {
		lc.ColSize = cfg.Queues.Collision
	}
	return lc, lc.Validate()
}

// PCPMap returns the configured priority map, or nil when the default
// derivation applies.
func (cfg *Config) PCPMap() (*emac.PCPMap, error) {
	if len(cfg.PCP) == 0 {
		return nil, nil
	}
	if len(cfg.PCP) != fwmap.NumVlanPCP {
		return nil, serrors.New("pcp map needs eight entries",
			"len", len(cfg.PCP))
	}
	var m emac.PCPMap
	for i, q := range cfg.PCP {
		if q < 0 || q >= fwmap.NumQueues {
			return nil, serrors.New("pcp map entry out of range",
				"pcp", i, "queue", q)
		}
		m[i] = uint8(q)
	}
	return &m, nil
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.Wrap("reading config", err, "path", path)
	}
	var cfg Config
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, serrors.Wrap("parsing config", err, "path", path)
	}
	cfg.InitDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, serrors.Wrap("validating config", err, "path", path)
	}
	return &cfg, nil
}

// Sample returns a commented sample configuration.
func Sample() string {
	return `# Firmware personality: emac, switch, hsr or prp.
protocol = "hsr"

# Frames lifted out of the host queues per drain pass.
rx_quota = 64

[log]
  # Console log level: debug, info or error.
  level = "info"

[queues]
  # Queue sizes in blocks. Omit to use the firmware defaults.
  # host_rx = [254, 134, 134, 254]
  # tx = [97, 97, 97, 97]
  # collision = 48

# VLAN priority to receive queue map, PCP 0 first. Omit to derive it
# from the queue sizing.
# pcp = [3, 3, 2, 2, 1, 1, 0, 0]

[ports.1]
  mac = "02:00:00:00:00:01"

[ports.2]
  mac = "02:00:00:00:00:02"

[lre]
  node_forget_time_ms = 60000
  duplicate_forget_time_ms = 400
  duplicate_accept = false
  transparent_reception = false
  hsr_mode = 1
`
}
