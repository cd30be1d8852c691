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

// Package httpapi implements the HTTP Surface of spec.md section 6: the
// REST endpoints, the session guard, the login rate limiter, and the
// static UI file server, wiring together every other component.
package httpapi

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const sessionTTL = 24 * time.Hour

// Session is an opaque-token session record, in-memory only, per
// spec.md section 3's Session entity.
type Session struct {
	Token         string
	CreatedAt     time.Time
	ClientAddress string
}

// SessionStore guards the in-memory session table with a mutex, the
// single-writer convention spec.md section 5 requires of shared
// process-local tables. clockwork.Clock makes expiry deterministically
// testable without sleeping real time.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	clock    clockwork.Clock
}

func NewSessionStore(clock clockwork.Clock) *SessionStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionStore{sessions: map[string]Session{}, clock: clock}
}

// Create mints a 32-byte cryptographically random token (spec.md
// section 5) bound to clientAddress.
func (s *SessionStore) Create(clientAddress string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = Session{Token: token, CreatedAt: s.clock.Now(), ClientAddress: clientAddress}
	return token, nil
}

// Validate reports whether token is live, unexpired, and still bound to
// clientAddress; a client-address change invalidates the session per
// spec.md section 3.
func (s *SessionStore) Validate(token, clientAddress string) bool {
	if token == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return false
	}
	if s.clock.Now().Sub(sess.CreatedAt) > sessionTTL {
		delete(s.sessions, token)
		return false
	}
	if subtle.ConstantTimeCompare([]byte(sess.ClientAddress), []byte(clientAddress)) != 1 {
		return false
	}
	return true
}

// Invalidate removes a token, e.g. on explicit logout.
func (s *SessionStore) Invalidate(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}
