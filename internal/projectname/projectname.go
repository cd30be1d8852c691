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

// Package projectname derives the per-project CLI name override used to
// scope compose invocations (spec.md section 4.5) and to detect the
// collision the Open Question in spec.md section 9 calls out. It is its
// own package because both the Reconciler (collision detection) and the
// Lifecycle Driver (COMPOSE_PROJECT_NAME override) must agree on it.
package projectname

import (
	"regexp"
	"strings"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

// Tail returns the lowercase alphanumeric tail of a project directory's
// base name, e.g. "/srv/apps/my-app!" -> "myapp".
func Tail(dir string) string {
	base := dir
	if i := strings.LastIndexByte(dir, '/'); i >= 0 {
		base = dir[i+1:]
	}
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(base), "")
}
