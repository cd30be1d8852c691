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
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	loginMaxAttempts = 5
	loginWindow      = 15 * time.Minute
)

// LoginLimiter enforces the per-client-address sliding window of
// spec.md section 5: at most 5 failed attempts per 15 minutes. It is a
// small bespoke counter rather than an imported rate-limiter library
// because the rule is a plain sliding failure count, not a token bucket
// or leaky bucket — pulling in a general-purpose limiter would model a
// shape this rule doesn't have.
type LoginLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	clock    clockwork.Clock
}

func NewLoginLimiter(clock clockwork.Clock) *LoginLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LoginLimiter{failures: map[string][]time.Time{}, clock: clock}
}

// Allow reports whether addr may attempt a login right now.
func (l *LoginLimiter) Allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(addr)) < loginMaxAttempts
}

// RecordFailure appends a failed attempt for addr.
func (l *LoginLimiter) RecordFailure(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[addr] = append(l.prune(addr), l.clock.Now())
}

// RecordSuccess clears addr's failure history; a successful login
// shouldn't leave stale near-limit state behind.
func (l *LoginLimiter) RecordSuccess(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, addr)
}

// prune drops attempts outside loginWindow and must be called with
// l.mu held.
func (l *LoginLimiter) prune(addr string) []time.Time {
	cutoff := l.clock.Now().Add(-loginWindow)
	kept := l.failures[addr][:0]
	for _, t := range l.failures[addr] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.failures[addr] = kept
	return kept
}
