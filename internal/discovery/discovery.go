/*
   Copyright 2026 The fleetd Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package discovery walks the workspace tree and identifies project
// directories by the file-signature predicate from spec.md section 4.2.
package discovery

import (
	"os"
	"path/filepath"
	"sort"
)

// pruned directory names never descended into.
var pruned = map[string]bool{
	"node_modules": true,
	".git":         true,
	".hg":          true,
	".svn":         true,
}

// Signature names the files a directory must contain to qualify as a project.
type Signature struct {
	ManifestNames []string // e.g. docker-compose.yml, docker-compose.yaml
	ConnectScript string
	RestartScript string
	StopScript    string
}

// DefaultSignature matches spec.md's "start-equivalent, restart, stop" triple.
func DefaultSignature() Signature {
	return Signature{
		ManifestNames: []string{"docker-compose.yml", "docker-compose.yaml"},
		ConnectScript: "connect.sh",
		RestartScript: "restart.sh",
		StopScript:    "stop.sh",
	}
}

// Found is one discovered project directory.
type Found struct {
	Dir          string
	ManifestPath string
}

// Walk recursively scans root and returns discovered projects sorted
// lexicographically by directory path for deterministic downstream
// ordering (spec.md 4.2).
func Walk(root string, sig Signature) ([]Found, error) {
	var found []Found

	var walkFn func(dir string) error
	walkFn = func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		names := map[string]bool{}
		var subdirs []string
		for _, e := range entries {
			if e.IsDir() {
				if pruned[e.Name()] {
					continue
				}
				subdirs = append(subdirs, e.Name())
				continue
			}
			names[e.Name()] = true
		}

		manifest := ""
		for _, m := range sig.ManifestNames {
			if names[m] {
				manifest = m
				break
			}
		}
		if manifest != "" && names[sig.ConnectScript] && names[sig.RestartScript] && names[sig.StopScript] {
			found = append(found, Found{
				Dir:          dir,
				ManifestPath: filepath.Join(dir, manifest),
			})
		}

		for _, sub := range subdirs {
			if err := walkFn(filepath.Join(dir, sub)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walkFn(root); err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Dir < found[j].Dir })
	return found, nil
}
