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

// pructl inspects the shared memory of the PRU Ethernet data plane from
// region image files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prunet/prunet/emac/config"
)

func main() {
	cmd := &cobra.Command{
		Use:           "pructl",
		Short:         "Inspect the PRU Ethernet data plane",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.AddCommand(
		newNodesCmd(),
		newStatsCmd(),
		newLREStatsCmd(),
		newLayoutCmd(),
		newSampleCmd(),
	)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newSampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample-config",
		Short: "Print a commented sample configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), config.Sample())
			return nil
		},
	}
}
