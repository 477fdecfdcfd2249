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
	"os"
	"path/filepath"

	"github.com/prunet/prunet/pkg/private/serrors"
	"github.com/prunet/prunet/pkg/shmem"
)

// regionFiles names the image files inside a memory dump directory.
var regionFiles = []string{"dram0.bin", "dram1.bin", "sharedram.bin", "ocmc.bin"}

// loadMap reads a memory dump directory into a Map.
func loadMap(dir string) (*shmem.Map, error) {
	regions := make([][]byte, len(regionFiles))
	for i, name := range regionFiles {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, serrors.Wrap("reading region image", err,
				"region", name)
		}
		regions[i] = raw
	}
	return shmem.NewMap(regions[0], regions[1], regions[2], regions[3]), nil
}
