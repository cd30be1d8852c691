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

package proxyedit

import (
	"context"
	"os/exec"
	"time"
)

const controlTimeout = 10 * time.Second

// Controller is the abstraction over "the reverse-proxy binary",
// resolving the Open Question in spec.md section 9 of how concretely
// to model that binary: Save needs only a way to validate a candidate
// config and a way to make the running proxy pick it up.
type Controller interface {
	// Test validates the config file at path without applying it.
	Test(path string) error
	// Reload makes the running proxy re-read its config.
	Reload() error
}

// BinController is the default Controller: it shells out to the
// configured proxy binary for both operations, falling back to the
// service manager to restart/reload the proxy unit if the binary's own
// reload signal isn't available (e.g. the binary isn't on PATH inside
// a minimal container but a host-level systemd unit is).
type BinController struct {
	ProxyBin          string
	ServiceManagerBin string
	ServiceName       string
}

func (c *BinController) Test(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, c.ProxyBin, "-t", "-c", path).CombinedOutput()
	if err != nil {
		return &SaveError{Phase: "test", Stderr: string(out), cause: err}
	}
	return nil
}

func (c *BinController) Reload() error {
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, c.ProxyBin, "-s", "reload").CombinedOutput()
	if err == nil {
		return nil
	}
	if c.ServiceManagerBin == "" {
		return &SaveError{Phase: "reload", Stderr: string(out), cause: err}
	}

	fctx, fcancel := context.WithTimeout(context.Background(), controlTimeout)
	defer fcancel()
	fout, ferr := exec.CommandContext(fctx, c.ServiceManagerBin, "reload", c.ServiceName).CombinedOutput()
	if ferr != nil {
		return &SaveError{Phase: "reload", Stderr: string(fout), cause: ferr}
	}
	return nil
}
