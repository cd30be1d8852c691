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
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

const fixture = `services:
  web:
    image: nginx:latest
    restart: always
    ports:
      - "8080:80"
    networks:
      appnet:
        ipv4_address: 172.28.0.5
    labels:
      - "custom.label=keep-me"
networks:
  appnet:
    external: true
    name: appnet
`

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "docker-compose.yml")
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadParsesPortsAndNetworks(t *testing.T) {
	path := writeFixture(t, fixture)
	p, err := Load(filepath.Dir(path), path)
	assert.NilError(t, err)

	svc := p.Services["web"]
	assert.Assert(t, svc != nil)
	assert.Equal(t, svc.Image, "nginx:latest")
	assert.Equal(t, svc.Restart, RestartAlways)
	assert.Equal(t, len(svc.Ports), 1)
	assert.Equal(t, svc.Ports[0].HostPort, 8080)
	assert.Equal(t, svc.Ports[0].ContainerPort, 80)
	assert.Equal(t, svc.Networks["appnet"].IPv4, "172.28.0.5")
}

func TestWriteIfChangedIsIdempotent(t *testing.T) {
	path := writeFixture(t, fixture)
	dir := filepath.Dir(path)

	p, err := Load(dir, path)
	assert.NilError(t, err)
	changed, err := WriteIfChanged(p, "proxy")
	assert.NilError(t, err)
	assert.Assert(t, changed, "first write should normalize the version-less fixture and record a change")

	p2, err := Load(dir, path)
	assert.NilError(t, err)
	changed2, err := WriteIfChanged(p2, "proxy")
	assert.NilError(t, err)
	assert.Assert(t, !changed2, "second write with no edits must be a no-op (P4 idempotence)")
}

func TestBareIPv4CanonicalizedOnWrite(t *testing.T) {
	content := `services:
  web:
    image: nginx
    networks:
      appnet: 172.28.0.9
networks:
  appnet:
    external: true
    name: appnet
`
	path := writeFixture(t, content)
	p, err := Load(filepath.Dir(path), path)
	assert.NilError(t, err)
	assert.Equal(t, p.Services["web"].Networks["appnet"].IPv4, "172.28.0.9")
	assert.Assert(t, p.Services["web"].Networks["appnet"].IsBare)

	out, err := Serialize(p, "proxy")
	assert.NilError(t, err)
	assert.Assert(t, containsLine(string(out), "ipv4_address: 172.28.0.9"))
}

func TestUnreferencedNetworkPrunedExceptDefault(t *testing.T) {
	content := `services:
  web:
    image: nginx
networks:
  stale:
    external: true
    name: stale
  proxy:
    external: true
    name: proxy
`
	path := writeFixture(t, content)
	p, err := Load(filepath.Dir(path), path)
	assert.NilError(t, err)

	out, err := Serialize(p, "proxy")
	assert.NilError(t, err)
	assert.Assert(t, !containsLine(string(out), "stale:"))
	assert.Assert(t, containsLine(string(out), "proxy:"))
}

func containsLine(haystack, needle string) bool {
	return len(needle) > 0 && (len(haystack) >= len(needle)) && (indexOf(haystack, needle) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
