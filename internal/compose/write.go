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

package compose

import (
	"bytes"
	"fmt"
	"os"
)

// WriteIfChanged serializes p and writes it to its manifest path only if
// the serialized bytes differ from what's currently on disk, per the
// idempotence write discipline in spec.md section 4.1. Returns whether a
// write occurred.
func WriteIfChanged(p *Project, defaultNetwork string) (bool, error) {
	newBytes, err := Serialize(p, defaultNetwork)
	if err != nil {
		return false, err
	}
	current, err := os.ReadFile(p.ManifestPath)
	if err == nil && bytes.Equal(current, newBytes) {
		return false, nil
	}
	tmp := p.ManifestPath + ".tmp"
	if err := os.WriteFile(tmp, newBytes, 0o644); err != nil {
		return false, fmt.Errorf("write manifest %s: %w", p.ManifestPath, err)
	}
	if err := os.Rename(tmp, p.ManifestPath); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("rename manifest %s: %w", p.ManifestPath, err)
	}
	return true, nil
}
