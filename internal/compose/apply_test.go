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
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
)

// Scenario 4 from spec.md section 8: applying a services map without
// "db" deletes it from the manifest.
func TestApplyDeletesMissingService(t *testing.T) {
	path := writeFixture(t, `services:
  web:
    image: nginx
  db:
    image: postgres
`)
	p, err := Load(filepath.Dir(path), path)
	assert.NilError(t, err)
	assert.Equal(t, len(p.Services), 2)

	Apply(p, map[string]ServiceSpec{
		"web": {Image: "nginx:latest"},
	}, nil)

	assert.Equal(t, len(p.Services), 1)
	_, hasDB := p.Services["db"]
	assert.Assert(t, !hasDB)
	_, hasWeb := p.Services["web"]
	assert.Assert(t, hasWeb)
}

func TestApplyAllocatesUnspecifiedHostPort(t *testing.T) {
	path := writeFixture(t, `services:
  web:
    image: nginx
`)
	p, err := Load(filepath.Dir(path), path)
	assert.NilError(t, err)

	calls := 0
	Apply(p, map[string]ServiceSpec{
		"web": {
			Image: "nginx",
			Ports: []PortSpec{{ContainerPort: 80}},
		},
	}, func() int {
		calls++
		return 10005
	})

	assert.Equal(t, calls, 1)
	assert.Equal(t, p.Services["web"].Ports[0].HostPort, 10005)
}

func TestApplyAddsNewService(t *testing.T) {
	path := writeFixture(t, `services:
  web:
    image: nginx
`)
	p, err := Load(filepath.Dir(path), path)
	assert.NilError(t, err)

	Apply(p, map[string]ServiceSpec{
		"web": {Image: "nginx"},
		"cache": {
			Image:    "redis",
			Networks: map[string]string{"appnet": "172.28.0.9"},
		},
	}, nil)

	assert.Equal(t, len(p.Services), 2)
	cache := p.Services["cache"]
	assert.Assert(t, cache != nil)
	assert.Equal(t, cache.Networks["appnet"].IPv4, "172.28.0.9")

	out, err := Serialize(p, "proxy")
	assert.NilError(t, err)
	assert.Assert(t, containsLine(string(out), "redis"))
}

// Applying multiple ports for one service must preserve each entry's
// container/host pairing in spec order; a field-by-field assert would
// miss a transposition bug, so this compares the whole slice at once.
func TestApplyPreservesMultiplePortPairings(t *testing.T) {
	path := writeFixture(t, `services:
  web:
    image: nginx
`)
	p, err := Load(filepath.Dir(path), path)
	assert.NilError(t, err)

	Apply(p, map[string]ServiceSpec{
		"web": {
			Image: "nginx",
			Ports: []PortSpec{
				{ContainerPort: 80, HostPort: 8080},
				{ContainerPort: 443, HostPort: 8443},
			},
		},
	}, nil)

	want := []PortMapping{
		{ContainerPort: 80, HostPort: 8080},
		{ContainerPort: 443, HostPort: 8443},
	}
	if diff := cmp.Diff(want, p.Services["web"].Ports); diff != "" {
		t.Fatalf("port mappings mismatch (-want +got):\n%s", diff)
	}
}
