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
	"strings"
	"time"

	"github.com/Neuxbane/fleetd/internal/allocator"
	"github.com/Neuxbane/fleetd/internal/apierr"
	"github.com/Neuxbane/fleetd/internal/logstats"
)

// handleMapper implements GET /api/mapper: the current enriched project
// index, public per spec.md section 6 so a dashboard can render without
// a session.
func (s *Server) handleMapper(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Mapper.Current())
}

// handleStats implements GET /api/stats?range=.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = string(logstats.Range1h)
	}
	result, err := logstats.Compute(time.Now(), logstats.Range(rng), s.Config.AccessLogPaths, s.Mapper)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleStatus implements GET /api/status?path=&service=.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dir, err := resolveProjectDir(s.Config.Workspace, q.Get("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	var services []string
	if sv := q.Get("service"); sv != "" {
		services = strings.Split(sv, ",")
	}
	entry, err := s.Status.Query(r.Context(), dir, services)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleNextIP implements GET /api/next-ip?network=: the next free IPv4
// in the workspace's configured subnet, scanning every project's current
// attachments to that network name.
func (s *Server) handleNextIP(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")
	if network == "" {
		writeError(w, apierr.Validationf("network is required"))
		return
	}
	used := map[string]bool{}
	for _, entry := range s.Mapper.Current().Projects {
		for _, svc := range entry.Services {
			if ip, ok := svc.Networks[network]; ok && ip != "" {
				used[ip] = true
			}
		}
	}
	ip, err := allocator.NextIPv4(s.Config.SubnetBase, used)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, err, "allocating ip"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ip": ip})
}

func (s *Server) handleNetworkList(w http.ResponseWriter, r *http.Request) {
	nets, err := s.Driver.NetworkList(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nets)
}

type networkCreateRequest struct {
	Name    string `json:"name"`
	Subnet  string `json:"subnet"`
	Gateway string `json:"gateway"`
}

func (s *Server) handleNetworkCreate(w http.ResponseWriter, r *http.Request) {
	var req networkCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Driver.NetworkCreate(r.Context(), req.Name, req.Subnet, req.Gateway); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type networkNameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleNetworkDelete(w http.ResponseWriter, r *http.Request) {
	var req networkNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Driver.NetworkDelete(r.Context(), req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleNetworkUpdate(w http.ResponseWriter, r *http.Request) {
	var req networkCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.Driver.NetworkUpdate(r.Context(), req.Name, req.Subnet, req.Gateway); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
