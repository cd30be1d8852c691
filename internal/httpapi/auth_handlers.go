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
	"crypto/subtle"
	"net/http"

	"github.com/Neuxbane/fleetd/internal/apierr"
)

type loginRequest struct {
	Password string `json:"password"`
}

// handleLogin implements POST /api/login: rate-limited password check,
// successful login mints a session token bound to the caller's address.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	addr := clientAddress(r)
	if !s.Limiter.Allow(addr) {
		writeError(w, apierr.New(apierr.RateLimited, "too many failed login attempts, try again later"))
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.Config.AdminPassword)) != 1 || s.Config.AdminPassword == "" {
		s.Limiter.RecordFailure(addr)
		writeError(w, apierr.New(apierr.Auth, "invalid password"))
		return
	}

	s.Limiter.RecordSuccess(addr)
	token, err := s.Sessions.Create(addr)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, err, "creating session"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
