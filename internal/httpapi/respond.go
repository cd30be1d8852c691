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
	"encoding/json"
	"net/http"

	"github.com/Neuxbane/fleetd/internal/apierr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps an error's apierr.Kind to its HTTP status (spec.md
// section 7) and renders the body shape the external-tool kind needs,
// never leaking more than that.
func writeError(w http.ResponseWriter, err error) {
	kind := apierr.KindOf(err)
	body := map[string]any{"error": err.Error()}

	var toolErr *apierr.Error
	if e, ok := err.(*apierr.Error); ok {
		toolErr = e
	}
	if toolErr != nil && toolErr.Kind == apierr.ExternalTool {
		body["cmd"] = toolErr.Cmd
		body["args"] = toolErr.Args
		body["stdout"] = toolErr.Stdout
		body["stderr"] = toolErr.Stderr
	}
	writeJSON(w, kind.Status(), body)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apierr.Wrap(apierr.Validation, err, "decoding request body")
	}
	return nil
}
