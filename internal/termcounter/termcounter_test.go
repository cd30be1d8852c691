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

package termcounter

import (
	"sync"
	"testing"

	"gotest.tools/v3/assert"
)

func TestCounterNeverGoesNegative(t *testing.T) {
	var c Counter
	c.Dec()
	c.Dec()
	assert.Equal(t, c.Value(), int64(0))
}

func TestCounterBalancesUnderConcurrency(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
			c.Dec()
		}()
	}
	wg.Wait()
	assert.Equal(t, c.Value(), int64(0))
	assert.Assert(t, !c.Active())
}
