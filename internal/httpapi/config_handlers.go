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
	"path/filepath"

	"github.com/Neuxbane/fleetd/internal/apierr"
)

// configDir is the per-project directory GET/POST config-file endpoints
// operate on, per spec.md section 6's "per-project config directory CRUD".
func configDir(projectDir string) string {
	return filepath.Join(projectDir, "config")
}

// handleConfigFiles implements GET /api/config-files?path=: lists
// regular files in the project's config directory.
func (s *Server) handleConfigFiles(w http.ResponseWriter, r *http.Request) {
	dir, err := resolveProjectDir(s.Config.Workspace, r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := os.ReadDir(configDir(dir))
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, []string{})
			return
		}
		writeError(w, apierr.Wrap(apierr.Internal, err, "listing config files"))
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	writeJSON(w, http.StatusOK, names)
}

// handleConfigGet implements GET /api/config?path=&file=.
func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, err := resolveProjectDir(s.Config.Workspace, q.Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	file := q.Get("file")
	if err := validateFilename(file); err != nil {
		writeError(w, err)
		return
	}
	content, err := os.ReadFile(filepath.Join(configDir(dir), file))
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, apierr.NotFoundf("config file %q not found", file))
			return
		}
		writeError(w, apierr.Wrap(apierr.Internal, err, "reading config file"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": string(content)})
}

type saveConfigRequest struct {
	Path    string `json:"path"`
	File    string `json:"file"`
	Content string `json:"content"`
}

// handleConfigSave implements POST /api/save-config.
func (s *Server) handleConfigSave(w http.ResponseWriter, r *http.Request) {
	var req saveConfigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dir, err := resolveProjectDir(s.Config.Workspace, req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := validateFilename(req.File); err != nil {
		writeError(w, err)
		return
	}
	cdir := configDir(dir)
	if err := os.MkdirAll(cdir, 0o755); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, err, "creating config directory"))
		return
	}
	if err := os.WriteFile(filepath.Join(cdir, req.File), []byte(req.Content), 0o644); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, err, "writing config file"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
