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

package main

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/prunet/prunet/emac"
	"github.com/prunet/prunet/emac/layout"
	"github.com/prunet/prunet/emac/lre"
	"github.com/prunet/prunet/pkg/private/serrors"
)

func newStatsCmd() *cobra.Command {
	var memDir string
	var port int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Dump the firmware statistics of one port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port < 1 || port >= layout.NumPorts {
				return serrors.New("invalid port", "port", port)
			}
			m, err := loadMap(memDir)
			if err != nil {
				return err
			}
			stats := emac.ReadPortStats(m.Region(layout.PortDRAM(port)))

			tw := tablewriter.NewWriter(cmd.OutOrStdout())
			tw.SetHeader([]string{"Counter", "Value"})
			names := emac.PortStatNames()
			for i, v := range stats.Values() {
				tw.Append([]string{names[i],
					strconv.FormatUint(uint64(v), 10)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&memDir, "mem", ".", "memory dump directory")
	cmd.Flags().IntVar(&port, "port", 1, "port id (1 or 2)")
	return cmd
}

func newLREStatsCmd() *cobra.Command {
	var memDir string
	cmd := &cobra.Command{
		Use:   "lre-stats",
		Short: "Dump the IEC 62439 LRE statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMap(memDir)
			if err != nil {
				return err
			}
			stats := lre.ReadStats(m)

			tw := tablewriter.NewWriter(cmd.OutOrStdout())
			tw.SetHeader([]string{"Counter", "Value"})
			names := lre.StatNames()
			for i, v := range stats.Values() {
				tw.Append([]string{names[i],
					strconv.FormatUint(uint64(v), 10)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&memDir, "mem", ".", "memory dump directory")
	return cmd
}
