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

package lifecycle

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/Neuxbane/fleetd/internal/apierr"
)

// Allowlist is the enforced set of binaries this process will ever
// invoke, per spec.md section 4.5: "the container CLI, its compose
// subcommand, the reverse-proxy binary, and the service manager."
type Allowlist struct {
	ComposeBin        string
	ProxyBin          string
	ServiceManagerBin string
}

// Allowed reports whether bin is one of the allowlisted binaries. Used
// by ptymux, which builds its own exec.Cmd directly (for PTY
// attachment) rather than going through runAllowed.
func (a Allowlist) Allowed(bin string) bool {
	return a.allowed(bin)
}

func (a Allowlist) allowed(bin string) bool {
	base := filepath.Base(bin)
	for _, ok := range []string{filepath.Base(a.ComposeBin), filepath.Base(a.ProxyBin), filepath.Base(a.ServiceManagerBin)} {
		if ok != "" && base == ok {
			return true
		}
	}
	return false
}

// runAllowed runs bin with args under a bounded timeout, refusing any
// binary not in the allowlist.
func runAllowed(ctx context.Context, allow Allowlist, bin string, args []string, timeout time.Duration) (stdout, stderr string, err error) {
	if !allow.allowed(bin) {
		return "", "", apierr.New(apierr.Internal, "refusing to invoke disallowed command: "+bin)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, bin, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	runErr := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()
	if runErr != nil {
		return stdout, stderr, apierr.ExternalToolError(bin, args, stdout, stderr, runErr)
	}
	return stdout, stderr, nil
}

// ScriptPath returns the path to a project-local helper script if it
// exists and is executable, or "" otherwise. Exported for ptymux's
// stop/restart actions, which run the same script lookup as Driver.Stop
// and Driver.Restart but inside a PTY rather than a captured pipe.
func ScriptPath(projectDir, name string) string {
	return scriptPath(projectDir, name)
}

// runScript runs a project-local helper script directly, bypassing the
// binary allowlist: authorization for a script comes from scriptPath
// already having confirmed it lives inside the project directory and
// carries the executable bit, not from appearing in Allowlist.
func runScript(ctx context.Context, script string, args []string, timeout time.Duration) (stdout, stderr string, err error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, script, args...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	runErr := cmd.Run()
	stdout, stderr = outBuf.String(), errBuf.String()
	if runErr != nil {
		return stdout, stderr, apierr.ExternalToolError(script, args, stdout, stderr, runErr)
	}
	return stdout, stderr, nil
}

// scriptPath returns the path to a project-local helper script if it
// exists and is executable, or "" otherwise.
func scriptPath(projectDir, name string) string {
	p := filepath.Join(projectDir, name)
	info, err := os.Stat(p)
	if err != nil {
		return ""
	}
	if info.IsDir() {
		return ""
	}
	if info.Mode()&0o111 == 0 {
		return ""
	}
	return p
}
