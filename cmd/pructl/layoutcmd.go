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
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/prunet/prunet/emac"
	"github.com/prunet/prunet/emac/layout"
	"github.com/prunet/prunet/pkg/fwmap"
)

func newLayoutCmd() *cobra.Command {
	var protoName string
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Show the derived queue memory placement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			proto, err := emac.ParseProtocol(protoName)
			if err != nil {
				return err
			}
			l, err := layout.Derive(layout.DefaultConfig(proto.Basis()))
			if err != nil {
				return err
			}

			tw := tablewriter.NewWriter(cmd.OutOrStdout())
			tw.SetHeader([]string{
				"Queue", "Blocks", "Buffer", "BD", "BD End", "Desc",
			})
			row := func(name string, q layout.Queue) {
				tw.Append([]string{
					name,
					strconv.Itoa(q.Blocks),
					fmt.Sprintf("0x%04x", q.BufferOffset),
					fmt.Sprintf("0x%04x", q.BDOffset),
					fmt.Sprintf("0x%04x", q.BDEnd),
					fmt.Sprintf("%s+0x%04x",
						q.Desc.Region, q.Desc.Offset),
				})
			}
			for qi := 0; qi < fwmap.NumQueues; qi++ {
				row(fmt.Sprintf("host rx %d", qi+1), l.HostRx[qi])
			}
			for p := 1; p < layout.NumPorts; p++ {
				for qi := 0; qi < fwmap.NumQueues; qi++ {
					row(fmt.Sprintf("p%d tx %d", p, qi+1), l.Tx[p][qi])
				}
			}
			if l.Basis == layout.BasisSwitch {
				for p := 0; p < layout.NumPorts; p++ {
					row(fmt.Sprintf("p%d col", p), l.Col[p])
				}
			}
			tw.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "descriptor pool ends at 0x%04x\n",
				l.EOFBufferBD)
			return nil
		},
	}
	cmd.Flags().StringVar(&protoName, "protocol", "switch", "protocol (emac, switch, hsr, prp)")
	return cmd
}
