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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prunet/prunet/emac"
	"github.com/prunet/prunet/emac/layout"
)

func TestSampleParsesAndValidates(t *testing.T) {
	var cfg Config
	require.NoError(t, toml.Unmarshal([]byte(Sample()), &cfg))
	cfg.InitDefaults()
	require.NoError(t, cfg.Validate())

	proto, err := cfg.ParsedProtocol()
	require.NoError(t, err)
	assert.Equal(t, emac.ProtocolHSR, proto)
	assert.Equal(t, "02:00:00:00:00:01", cfg.Ports["1"].MAC)
}

func TestDefaults(t *testing.T) {
	var cfg Config
	cfg.InitDefaults()
	require.NoError(t, cfg.Validate())

	proto, err := cfg.ParsedProtocol()
	require.NoError(t, err)
	assert.Equal(t, emac.ProtocolEMAC, proto)
	assert.Equal(t, emac.DefaultRxQuota, cfg.RxQuota)
	assert.Equal(t, 60000, cfg.LRE.NodeForgetTimeMS)

	lc, err := cfg.QueueLayout(proto)
	require.NoError(t, err)
	assert.Equal(t, layout.DefaultEMACHostRx, lc.HostRx)

	pcp, err := cfg.PCPMap()
	require.NoError(t, err)
	assert.Nil(t, pcp)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"protocol":  func(c *Config) { c.Protocol = "token-ring" },
		"log level": func(c *Config) { c.Logging.Level = "verbose" },
		"port id":   func(c *Config) { c.Ports = map[string]PortEntry{"3": {}} },
		"mac": func(c *Config) {
			c.Ports = map[string]PortEntry{"1": {MAC: "zz:zz"}}
		},
		"queue sizes": func(c *Config) { c.Queues.HostRx = []int{1, 2} },
		"tiny queue":  func(c *Config) { c.Queues.Tx = []int{97, 97, 1, 97} },
		"pcp len":     func(c *Config) { c.PCP = []int{1, 2, 3} },
		"pcp range":   func(c *Config) { c.PCP = []int{0, 0, 0, 0, 0, 0, 0, 9} },
		"hsr mode": func(c *Config) {
			c.Protocol = "hsr"
			c.LRE.HSRMode = 6
		},
		"forget time": func(c *Config) {
			c.Protocol = "prp"
			c.LRE.NodeForgetTimeMS = -1
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			var cfg Config
			cfg.InitDefaults()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestQueueOverrides(t *testing.T) {
	var cfg Config
	cfg.InitDefaults()
	cfg.Protocol = "switch"
	cfg.Queues.HostRx = []int{100, 100, 100, 100}
	cfg.Queues.Collision = 50

	lc, err := cfg.QueueLayout(emac.ProtocolSwitch)
	require.NoError(t, err)
	assert.Equal(t, [4]int{100, 100, 100, 100}, lc.HostRx)
	assert.Equal(t, layout.DefaultTx, lc.Tx)
	assert.Equal(t, 50, lc.ColSize)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prunet.toml")
	require.NoError(t, os.WriteFile(path, []byte(Sample()), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hsr", cfg.Protocol)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("protocol = 5"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)
}
