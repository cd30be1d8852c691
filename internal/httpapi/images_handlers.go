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

	"github.com/Neuxbane/fleetd/internal/apierr"
)

// handleImageList implements GET /api/images/list, a thin pass-through
// over the container CLI's image listing (spec.md section 6).
func (s *Server) handleImageList(w http.ResponseWriter, r *http.Request) {
	images, err := s.Driver.ImageList(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, images)
}

type imageRefRequest struct {
	Ref string `json:"ref"`
}

func (s *Server) handleImagePull(w http.ResponseWriter, r *http.Request) {
	var req imageRefRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Ref == "" {
		writeError(w, apierr.Validationf("ref is required"))
		return
	}
	if err := s.Driver.ImagePull(r.Context(), req.Ref); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	var req imageRefRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Ref == "" {
		writeError(w, apierr.Validationf("ref is required"))
		return
	}
	if err := s.Driver.ImageDelete(r.Context(), req.Ref); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
