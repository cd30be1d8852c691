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

// Package termcounter implements the process-wide ActiveTerminalCounter
// from spec.md section 3: a non-negative count of live PTY sessions that
// gates the Reconciler. It is its own package so the PTY Multiplexer and
// the Reconciler can share it without depending on each other.
package termcounter

import "sync/atomic"

// Counter is safe for concurrent use.
type Counter struct {
	n int64
}

// Inc increments the counter when a PTY session starts.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.n, 1)
}

// Dec decrements the counter when a PTY session tears down. Callers must
// guard this with a once-flag per session so a session never decrements
// twice (spec.md 4.7's cancellation contract).
func (c *Counter) Dec() {
	for {
		cur := atomic.LoadInt64(&c.n)
		if cur <= 0 {
			return
		}
		if atomic.CompareAndSwapInt64(&c.n, cur, cur-1) {
			return
		}
	}
}

// Active reports whether any PTY session is currently live.
func (c *Counter) Active() bool {
	return atomic.LoadInt64(&c.n) > 0
}

// Value returns the current count, for diagnostics and tests.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.n)
}
