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
	"net/http"
	"path/filepath"

	"github.com/Neuxbane/fleetd/internal/apierr"
	"github.com/Neuxbane/fleetd/internal/compose"
)

type lifecycleRequest struct {
	Path      string `json:"path"`
	Service   string `json:"service"`
	ExtraArgs string `json:"extraArgs"`
}

func (req lifecycleRequest) project(workspace string) (*compose.Project, error) {
	dir, err := resolveProjectDir(workspace, req.Path)
	if err != nil {
		return nil, err
	}
	return &compose.Project{Dir: dir, ManifestPath: filepath.Join(dir, "docker-compose.yml")}, nil
}

// handleStop implements POST /api/stop: a captured (non-PTY) stop,
// for callers that don't need live output — interactive stop/restart
// with streamed output goes through /ws/attach?action=stop instead.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := req.project(s.Config.Workspace)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Driver.Stop(r.Context(), p, req.Service, req.ExtraArgs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	p, err := req.project(s.Config.Workspace)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Driver.Restart(r.Context(), p, req.Service, req.ExtraArgs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleAttachCheck implements POST /api/attach: it only validates that
// the target service exists before the client opens the actual PTY
// session over /ws/attach?action=exec, which is where the interactive
// byte stream lives.
func (s *Server) handleAttachCheck(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dir, err := resolveProjectDir(s.Config.Workspace, req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	entry, ok := s.Mapper.Current().Projects[dir]
	if !ok {
		writeError(w, apierr.NotFoundf("project %q not found", req.Path))
		return
	}
	if _, ok := entry.Services[req.Service]; !ok {
		writeError(w, apierr.NotFoundf("service %q not found", req.Service))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleWSAttach upgrades to the PTY multiplexer. Browsers cannot set
// arbitrary headers on a WebSocket handshake, so per spec.md section 6
// this route authenticates via a token query parameter instead of the
// Authorization header the rest of the API uses.
func (s *Server) handleWSAttach(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !s.Sessions.Validate(token, clientAddress(r)) {
		http.Error(w, "missing or expired session", http.StatusUnauthorized)
		return
	}
	s.PTY.ServeHTTP(w, r)
}
