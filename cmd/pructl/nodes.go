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

	"github.com/prunet/prunet/emac/lre"
)

func newNodesCmd() *cobra.Command {
	var memDir string
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "Dump the redundancy node table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadMap(memDir)
			if err != nil {
				return err
			}
			nodes := lre.ReadNodeTable(m)

			tw := tablewriter.NewWriter(cmd.OutOrStdout())
			tw.SetHeader([]string{
				"MAC", "Type", "Valid", "RxA", "RxB", "SupRxA", "SupRxB",
				"ErrA", "ErrB", "LastSeenA", "LastSeenB",
			})
			for _, n := range nodes {
				tw.Append([]string{
					n.MAC.String(),
					n.Type.String(),
					strconv.FormatBool(n.Valid),
					strconv.FormatUint(uint64(n.RxA), 10),
					strconv.FormatUint(uint64(n.RxB), 10),
					strconv.FormatUint(uint64(n.SupRxA), 10),
					strconv.FormatUint(uint64(n.SupRxB), 10),
					strconv.FormatUint(uint64(n.ErrA), 10),
					strconv.FormatUint(uint64(n.ErrB), 10),
					fmt.Sprintf("%dms", uint64(n.TimeLastSeenA)*10),
					fmt.Sprintf("%dms", uint64(n.TimeLastSeenB)*10),
				})
			}
			tw.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "%d nodes (firmware count %d)\n",
				len(nodes), lre.NodeCount(m))
			return nil
		},
	}
	cmd.Flags().StringVar(&memDir, "mem", ".", "memory dump directory")
	return cmd
}
