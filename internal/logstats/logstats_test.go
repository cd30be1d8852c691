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

package logstats

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/Neuxbane/fleetd/internal/mapperstore"
)

func newMapperWithProject(t *testing.T, dir, service, ip string) *mapperstore.Store {
	t.Helper()
	s := mapperstore.NewStore(filepath.Join(t.TempDir(), "mapper.json"))
	m := mapperstore.New()
	m.Projects[dir] = &mapperstore.ProjectEntry{
		Services: map[string]*mapperstore.ServiceEntry{
			service: {Name: service, Networks: map[string]string{"appnet": ip}},
		},
	}
	_, err := s.WriteIfChanged(m)
	assert.NilError(t, err)
	return s
}

func TestParseLineExtractsTimePathUpstream(t *testing.T) {
	line := `10.0.0.1 - - [31/Jul/2026:10:00:00 +0000] "GET /health HTTP/1.1" 200 12 "-" "curl/8.0" "172.28.0.5:8080"`
	rec, ok := parseLine(line)
	assert.Assert(t, ok)
	assert.Equal(t, rec.Path, "/health")
	assert.Equal(t, rec.UpstreamIP, "172.28.0.5")
	assert.Equal(t, rec.Time.UTC().Format(nginxTimeLayout), "31/Jul/2026:10:00:00 +0000")
}

func TestParseLineRejectsGarbage(t *testing.T) {
	_, ok := parseLine("not a log line")
	assert.Assert(t, !ok)
}

func TestComputeBucketsAttributedLines(t *testing.T) {
	now, err := time.Parse(time.RFC3339, "2026-07-31T12:00:00Z")
	assert.NilError(t, err)

	mapper := newMapperWithProject(t, "/srv/apps/foo", "web", "172.28.0.5")

	logPath := filepath.Join(t.TempDir(), "access.log")
	lines := []string{
		`10.0.0.1 - - [31/Jul/2026:11:50:00 +0000] "GET /a HTTP/1.1" 200 1 "-" "-" "172.28.0.5:80"`,
		`10.0.0.1 - - [31/Jul/2026:11:55:00 +0000] "GET /b HTTP/1.1" 200 1 "-" "-" "172.28.0.5:80"`,
		`10.0.0.1 - - [31/Jul/2026:11:55:10 +0000] "GET /c HTTP/1.1" 200 1 "-" "-" "10.0.0.9:80"`,   // unattributed
		`10.0.0.1 - - [30/Jul/2026:11:55:10 +0000] "GET /d HTTP/1.1" 200 1 "-" "-" "172.28.0.5:80"`, // outside window
	}
	assert.NilError(t, os.WriteFile(logPath, []byte(stringsJoin(lines)), 0o644))

	result, err := Compute(now, Range1h, []string{logPath}, mapper)
	assert.NilError(t, err)
	assert.Equal(t, len(result.Labels), 12) // 1h / 5m

	counts, ok := result.Services["/srv/apps/foo"]
	assert.Assert(t, ok)
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, total, 2)
}

func TestComputeRejectsUnknownRange(t *testing.T) {
	mapper := newMapperWithProject(t, "/srv/apps/foo", "web", "172.28.0.5")
	_, err := Compute(time.Now(), Range("9y"), nil, mapper)
	assert.ErrorContains(t, err, "unknown stats range")
}

func stringsJoin(lines []string) string {
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
