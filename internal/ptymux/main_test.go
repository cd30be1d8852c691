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

package ptymux

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain checks every test in this package for leaked goroutines.
// ptymux is the one package in this module that spawns long-lived
// goroutines per attach session (PTY copy loops, websocket pumps), so
// it is the most likely place a forgotten exit path would show up as a
// leak.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
