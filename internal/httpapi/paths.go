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
	"path/filepath"
	"strings"

	"github.com/Neuxbane/fleetd/internal/apierr"
)

// resolveProjectDir joins a client-supplied project-relative path onto
// the workspace root and refuses anything that escapes it, so the HTTP
// layer never leaks or touches filesystem state outside the workspace
// (spec.md section 7's propagation policy).
func resolveProjectDir(workspace, relPath string) (string, error) {
	if relPath == "" || strings.Contains(relPath, "..") {
		return "", apierr.Validationf("invalid project path")
	}
	abs := filepath.Join(workspace, relPath)
	root := filepath.Clean(workspace) + string(filepath.Separator)
	if !strings.HasPrefix(abs+string(filepath.Separator), root) {
		return "", apierr.Validationf("invalid project path")
	}
	return abs, nil
}

// validateFilename enforces spec.md section 6's config-file CRUD rule:
// no "..", "/", or "\" in a filename within a project's config directory.
func validateFilename(name string) error {
	if name == "" || strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return apierr.Validationf("invalid file name %q", name)
	}
	return nil
}

// projectName is the final path element, used as the template-rename
// policy check (spec.md section 3, P6).
func projectName(relPath string) string {
	return filepath.Base(relPath)
}
