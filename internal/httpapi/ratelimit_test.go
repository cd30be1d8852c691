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

package httpapi

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"gotest.tools/v3/assert"
)

func TestLoginLimiterBlocksAfterFiveFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewLoginLimiter(clock)

	for i := 0; i < loginMaxAttempts; i++ {
		assert.Assert(t, limiter.Allow("10.0.0.1"))
		limiter.RecordFailure("10.0.0.1")
	}
	assert.Assert(t, !limiter.Allow("10.0.0.1"))
}

func TestLoginLimiterForgetsFailuresOutsideWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewLoginLimiter(clock)

	for i := 0; i < loginMaxAttempts; i++ {
		limiter.RecordFailure("10.0.0.1")
	}
	assert.Assert(t, !limiter.Allow("10.0.0.1"))

	clock.Advance(loginWindow + time.Minute)
	assert.Assert(t, limiter.Allow("10.0.0.1"))
}

func TestLoginLimiterIsPerAddress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewLoginLimiter(clock)

	for i := 0; i < loginMaxAttempts; i++ {
		limiter.RecordFailure("10.0.0.1")
	}
	assert.Assert(t, !limiter.Allow("10.0.0.1"))
	assert.Assert(t, limiter.Allow("10.0.0.2"))
}

func TestRecordSuccessClearsFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	limiter := NewLoginLimiter(clock)

	limiter.RecordFailure("10.0.0.1")
	limiter.RecordFailure("10.0.0.1")
	limiter.RecordSuccess("10.0.0.1")
	assert.Assert(t, limiter.Allow("10.0.0.1"))
}
