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
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/Neuxbane/fleetd/internal/allocator"
	"github.com/Neuxbane/fleetd/internal/apierr"
	"github.com/Neuxbane/fleetd/internal/compose"
	"github.com/Neuxbane/fleetd/internal/mapperstore"
)

type applyRequest struct {
	Path     string                         `json:"path"`
	Services map[string]compose.ServiceSpec `json:"services"`
}

// handleApply implements POST /api/apply: upsert-and-delete a project's
// service set, then trigger a reconcile (spec.md section 4.5).
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dir, err := resolveProjectDir(s.Config.Workspace, req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	manifest := filepath.Join(dir, "docker-compose.yml")
	p, err := compose.Load(dir, manifest)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.NotFound, err, "loading project manifest"))
		return
	}

	usedPorts := usedHostPorts(s.Mapper.Current())
	compose.Apply(p, req.Services, func() int {
		port := allocator.NextHostPort(usedPorts)
		usedPorts[port] = true
		return port
	})

	if _, err := compose.WriteIfChanged(p, s.Config.DefaultNetworkName); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, err, "writing manifest"))
		return
	}
	s.triggerReconcile()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func usedHostPorts(m *mapperstore.Mapper) map[int]bool {
	used := map[int]bool{}
	for _, entry := range m.Projects {
		for _, svc := range entry.Services {
			for _, pm := range svc.Ports {
				if pm.HostPort != 0 {
					used[pm.HostPort] = true
				}
			}
		}
	}
	return used
}

type addRequest struct {
	Name string `json:"name"`
}

// handleAdd implements POST /api/add: copy the template project to a new
// directory and let the next reconcile tick reallocate any colliding
// ports/IPs the copy introduces (spec.md section 6).
func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" || req.Name == "template" {
		writeError(w, apierr.Validationf("invalid project name %q", req.Name))
		return
	}
	dst, err := resolveProjectDir(s.Config.Workspace, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := os.Stat(dst); err == nil {
		writeError(w, apierr.Conflictf("project %q already exists", req.Name))
		return
	}

	src := filepath.Join(s.Config.Workspace, "template")
	if err := copyDir(src, dst); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, err, "copying template project"))
		return
	}
	s.triggerReconcile()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type renameRequest struct {
	Path    string `json:"path"`
	NewName string `json:"newName"`
}

// handleRename implements POST /api/rename: requires every service
// stopped and refuses the template project, per P6 and scenario 3.
func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if projectName(req.Path) == "template" {
		writeError(w, apierr.Policyf("the template project cannot be renamed"))
		return
	}
	dir, err := resolveProjectDir(s.Config.Workspace, req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	if running, err := s.anyServiceRunning(r, dir); err != nil {
		writeError(w, err)
		return
	} else if running {
		writeError(w, apierr.Conflictf("cannot rename project with running services"))
		return
	}

	dst, err := resolveProjectDir(s.Config.Workspace, req.NewName)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := os.Rename(dir, dst); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, err, "renaming project"))
		return
	}
	s.triggerReconcile()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type deleteRequest struct {
	Path        string `json:"path"`
	ConfirmName string `json:"confirmName"`
}

// handleDelete implements POST /api/delete: requires the confirmation
// string to match the folder name, refuses the template project, and
// requires every service stopped (scenario 3).
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	name := projectName(req.Path)
	if name == "template" {
		writeError(w, apierr.Policyf("the template project cannot be deleted"))
		return
	}
	if req.ConfirmName != name {
		writeError(w, apierr.Validationf("confirmation name does not match project folder"))
		return
	}
	dir, err := resolveProjectDir(s.Config.Workspace, req.Path)
	if err != nil {
		writeError(w, err)
		return
	}
	if running, err := s.anyServiceRunning(r, dir); err != nil {
		writeError(w, err)
		return
	} else if running {
		writeError(w, apierr.Conflictf("cannot delete project with running services"))
		return
	}

	if err := os.RemoveAll(dir); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, err, "deleting project"))
		return
	}
	s.triggerReconcile()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) anyServiceRunning(r *http.Request, dir string) (bool, error) {
	entry, err := s.Status.Query(r.Context(), dir, nil)
	if err != nil {
		return false, err
	}
	for _, svc := range entry.Services {
		if svc.Status == mapperstore.StatusRunning {
			return true, nil
		}
	}
	return false, nil
}

// copyDir recursively copies src to dst, preserving the executable bit
// helper scripts depend on (spec.md 4.2's discovery signature).
func copyDir(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFilePreservingMode(path, target, info.Mode())
	})
}

func copyFilePreservingMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
