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

package lifecycle

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	units "github.com/docker/go-units"
)

const imageTimeout = 30 * time.Second

// ImageInfo is one entry of GET /api/images/list, a thin pass-through
// over the container CLI's own image listing (spec.md section 6).
type ImageInfo struct {
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	ID         string `json:"id"`
	Size       string `json:"size"`
	SizeBytes  int64  `json:"sizeBytes"`
	CreatedAt  string `json:"createdAt"`
}

type dockerImageLsLine struct {
	Repository string `json:"Repository"`
	Tag        string `json:"Tag"`
	ID         string `json:"ID"`
	Size       string `json:"Size"`
	CreatedAt  string `json:"CreatedAt"`
}

// ImageList shells out to `image ls` with one JSON object per line and
// renders each entry's size human-readably via go-units, reformatting
// the CLI's own (already human) size into a canonical form and exposing
// the raw byte count alongside it.
func (d *Driver) ImageList(ctx context.Context) ([]ImageInfo, error) {
	stdout, _, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, []string{"image", "ls", "--format", "{{json .}}"}, imageTimeout)
	if err != nil {
		return nil, err
	}

	var result []ImageInfo
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var raw dockerImageLsLine
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}
		bytes, _ := units.FromHumanSize(raw.Size)
		result = append(result, ImageInfo{
			Repository: raw.Repository,
			Tag:        raw.Tag,
			ID:         raw.ID,
			Size:       units.HumanSizeWithPrecision(float64(bytes), 3),
			SizeBytes:  bytes,
			CreatedAt:  raw.CreatedAt,
		})
	}
	return result, nil
}

// ImagePull runs `image pull <ref>`.
func (d *Driver) ImagePull(ctx context.Context, ref string) error {
	_, _, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, []string{"image", "pull", ref}, pullTimeout)
	return err
}

// ImageDelete runs `image rm <ref>`.
func (d *Driver) ImageDelete(ctx context.Context, ref string) error {
	_, _, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, []string{"image", "rm", ref}, imageTimeout)
	return err
}

const pullTimeout = 5 * time.Minute
