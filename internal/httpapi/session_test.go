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

func TestSessionValidateSucceedsForSameAddress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewSessionStore(clock)

	token, err := store.Create("10.0.0.1")
	assert.NilError(t, err)
	assert.Assert(t, store.Validate(token, "10.0.0.1"))
}

func TestSessionValidateFailsForDifferentAddress(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewSessionStore(clock)

	token, err := store.Create("10.0.0.1")
	assert.NilError(t, err)
	assert.Assert(t, !store.Validate(token, "10.0.0.2"))
}

func TestSessionExpiresAfterTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewSessionStore(clock)

	token, err := store.Create("10.0.0.1")
	assert.NilError(t, err)

	clock.Advance(sessionTTL + time.Minute)
	assert.Assert(t, !store.Validate(token, "10.0.0.1"))
}

func TestSessionInvalidateRemovesToken(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewSessionStore(clock)

	token, err := store.Create("10.0.0.1")
	assert.NilError(t, err)
	store.Invalidate(token)
	assert.Assert(t, !store.Validate(token, "10.0.0.1"))
}
