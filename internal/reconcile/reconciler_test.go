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

package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/Neuxbane/fleetd/internal/compose"
	"github.com/Neuxbane/fleetd/internal/discovery"
	"github.com/Neuxbane/fleetd/internal/mapperstore"
	"github.com/Neuxbane/fleetd/internal/termcounter"
)

func writeProject(t *testing.T, root, name, manifest string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	assert.NilError(t, os.MkdirAll(dir, 0o755))
	for _, script := range []string{"connect.sh", "restart.sh", "stop.sh"} {
		assert.NilError(t, os.WriteFile(filepath.Join(dir, script), []byte("#!/bin/sh\n"), 0o755))
	}
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte(manifest), 0o644))
	return dir
}

func newTestReconciler(t *testing.T, root string) *Reconciler {
	t.Helper()
	store := mapperstore.NewStore(filepath.Join(root, "mapper.json"))
	r := New(root, store, &termcounter.Counter{})
	r.Signature = discovery.DefaultSignature()
	return r
}

// Scenario 1 from spec.md section 8: two projects each declare host
// port 8080; one keeps it, the other is reassigned to 10000.
func TestPortCollisionResolution(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "a", "services:\n  a:\n    image: nginx\n    ports:\n      - \"8080:80\"\n")
	writeProject(t, root, "b", "services:\n  b:\n    image: nginx\n    ports:\n      - \"8080:80\"\n")

	r := newTestReconciler(t, root)
	res := r.Tick(context.Background())
	assert.NilError(t, res.Errs)
	assert.Equal(t, res.ProjectsSeen, 2)

	pa, err := compose.Load(filepath.Join(root, "a"), filepath.Join(root, "a", "docker-compose.yml"))
	assert.NilError(t, err)
	pb, err := compose.Load(filepath.Join(root, "b"), filepath.Join(root, "b", "docker-compose.yml"))
	assert.NilError(t, err)

	ports := map[int]bool{
		pa.Services["a"].Ports[0].HostPort: true,
		pb.Services["b"].Ports[0].HostPort: true,
	}
	assert.Equal(t, len(ports), 2, "both projects must end up with distinct host ports")
	assert.Assert(t, ports[8080], "one project must retain 8080")
	assert.Assert(t, ports[10000], "the other must get the smallest free port >= 10000")
}

// Scenario 2: IP collision resolution on the default subnet.
func TestIPCollisionResolution(t *testing.T) {
	root := t.TempDir()
	m := `services:
  %s:
    image: nginx
    networks:
      appnet:
        ipv4_address: 172.28.0.5
networks:
  appnet:
    external: true
    name: appnet
`
	writeProject(t, root, "a", fmt.Sprintf(m, "x"))
	writeProject(t, root, "b", fmt.Sprintf(m, "y"))

	r := newTestReconciler(t, root)
	res := r.Tick(context.Background())
	assert.NilError(t, res.Errs)

	pa, _ := compose.Load(filepath.Join(root, "a"), filepath.Join(root, "a", "docker-compose.yml"))
	pb, _ := compose.Load(filepath.Join(root, "b"), filepath.Join(root, "b", "docker-compose.yml"))

	ips := map[string]bool{
		pa.Services["x"].Networks["appnet"].IPv4: true,
		pb.Services["y"].Networks["appnet"].IPv4: true,
	}
	assert.Equal(t, len(ips), 2)
	assert.Assert(t, ips["172.28.0.5"])
}

// P4: a second tick with no intervening edits writes nothing.
func TestReconcileIsIdempotentAcrossTicks(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "a", "services:\n  a:\n    image: nginx\n    ports:\n      - \"8080:80\"\n")
	writeProject(t, root, "b", "services:\n  b:\n    image: nginx\n    ports:\n      - \"8080:80\"\n")

	r := newTestReconciler(t, root)
	first := r.Tick(context.Background())
	assert.Assert(t, first.ManifestWrites > 0)

	second := r.Tick(context.Background())
	assert.NilError(t, second.Errs)
	assert.Equal(t, second.ManifestWrites, 0, "P4: no writes on the second, edit-free tick")
}

// P8 / skip rule: an active PTY session suppresses the tick entirely.
func TestSkipRuleWhenTerminalActive(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "a", "services:\n  a:\n    image: nginx\n    ports:\n      - \"8080:80\"\n")

	counter := &termcounter.Counter{}
	counter.Inc()
	store := mapperstore.NewStore(filepath.Join(root, "mapper.json"))
	r := New(root, store, counter)

	res := r.Tick(context.Background())
	assert.Assert(t, res.Skipped)
}
