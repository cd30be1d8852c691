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

package allocator

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestNextHostPortSkipsUsed(t *testing.T) {
	used := map[int]bool{10000: true, 10001: true, 10003: true}
	assert.Equal(t, NextHostPort(used), 10002)
}

func TestNextHostPortEmpty(t *testing.T) {
	assert.Equal(t, NextHostPort(map[int]bool{}), 10000)
}

func TestNextIPv4SkipsUsedAndStartsAtTwo(t *testing.T) {
	used := map[string]bool{"172.28.0.2": true, "172.28.0.5": true}
	ip, err := NextIPv4("172.28.0.0", used)
	assert.NilError(t, err)
	assert.Equal(t, ip, "172.28.0.3")
}

func TestNextIPv4RejectsBadBase(t *testing.T) {
	_, err := NextIPv4("not-an-ip", nil)
	assert.ErrorContains(t, err, "invalid subnet base")
}
