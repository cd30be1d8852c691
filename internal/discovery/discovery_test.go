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

package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

func touch(t *testing.T, path string) {
	t.Helper()
	assert.NilError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestWalkFindsOnlyCompleteProjects(t *testing.T) {
	root := t.TempDir()

	full := filepath.Join(root, "apps", "foo")
	assert.NilError(t, os.MkdirAll(full, 0o755))
	touch(t, filepath.Join(full, "docker-compose.yml"))
	touch(t, filepath.Join(full, "connect.sh"))
	touch(t, filepath.Join(full, "restart.sh"))
	touch(t, filepath.Join(full, "stop.sh"))

	partial := filepath.Join(root, "apps", "bar")
	assert.NilError(t, os.MkdirAll(partial, 0o755))
	touch(t, filepath.Join(partial, "docker-compose.yml"))
	touch(t, filepath.Join(partial, "connect.sh"))

	ignored := filepath.Join(root, "node_modules", "baz")
	assert.NilError(t, os.MkdirAll(ignored, 0o755))
	touch(t, filepath.Join(ignored, "docker-compose.yml"))
	touch(t, filepath.Join(ignored, "connect.sh"))
	touch(t, filepath.Join(ignored, "restart.sh"))
	touch(t, filepath.Join(ignored, "stop.sh"))

	found, err := Walk(root, DefaultSignature())
	assert.NilError(t, err)
	assert.Equal(t, len(found), 1)
	assert.Equal(t, found[0].Dir, full)
}

func TestWalkReturnsSortedOrder(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"z", "a", "m"} {
		dir := filepath.Join(root, name)
		assert.NilError(t, os.MkdirAll(dir, 0o755))
		touch(t, filepath.Join(dir, "docker-compose.yml"))
		touch(t, filepath.Join(dir, "connect.sh"))
		touch(t, filepath.Join(dir, "restart.sh"))
		touch(t, filepath.Join(dir, "stop.sh"))
	}
	found, err := Walk(root, DefaultSignature())
	assert.NilError(t, err)
	assert.Equal(t, len(found), 3)
	assert.Assert(t, found[0].Dir < found[1].Dir)
	assert.Assert(t, found[1].Dir < found[2].Dir)
}
