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
	"os"

	"github.com/Neuxbane/fleetd/internal/apierr"
	"github.com/Neuxbane/fleetd/internal/proxyedit"
)

// handleNginxGet implements GET /api/nginx: the live proxy config,
// both raw text and parsed into upstreams/servers.
func (s *Server) handleNginxGet(w http.ResponseWriter, r *http.Request) {
	raw, err := os.ReadFile(s.Config.ProxyConfigPath)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, err, "reading proxy config"))
		return
	}
	parsed, err := proxyedit.Parse(string(raw))
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Validation, err, "parsing proxy config"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"raw": string(raw), "parsed": parsed})
}

type nginxSaveRequest struct {
	Content string `json:"content"`
}

// handleNginxSave implements POST /api/nginx/save, delegating to
// proxyedit.Save's atomic backup/test/reload/rollback protocol
// (spec.md section 4.8, L2).
func (s *Server) handleNginxSave(w http.ResponseWriter, r *http.Request) {
	var req nginxSaveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := proxyedit.Save(s.Config.ProxyConfigPath, []byte(req.Content), s.ProxyCtrl); err != nil {
		if se, ok := err.(*proxyedit.SaveError); ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"phase": se.Phase, "stderr": se.Stderr})
			return
		}
		writeError(w, apierr.Wrap(apierr.Internal, err, "saving proxy config"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
