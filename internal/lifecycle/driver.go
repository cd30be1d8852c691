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

// Package lifecycle drives service start/stop/restart/status by
// invoking the underlying container CLI (or a project-local helper
// script when present), per spec.md section 4.5. It never talks to the
// Docker Engine API directly: this spec's Lifecycle Driver is an
// arms-length shim over the same binaries an operator would run by hand.
package lifecycle

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"

	"github.com/Neuxbane/fleetd/internal/compose"
	"github.com/Neuxbane/fleetd/internal/mapperstore"
	"github.com/Neuxbane/fleetd/internal/projectname"
)

const (
	startTimeout  = 15 * time.Second
	stopTimeout   = 10 * time.Second
	statusTimeout = 10 * time.Second
	dwell         = 2 * time.Second
)

var containerInUseRE = regexp.MustCompile(`(?i)container name .* is already in use.*by container "?([0-9a-f]{12,64})"?`)

// Driver invokes the container CLI / project scripts for one workspace.
type Driver struct {
	Allow     Allowlist
	Transient *TransientStore
	Log       *logrus.Entry
}

func NewDriver(composeBin, proxyBin, serviceManagerBin string) *Driver {
	return &Driver{
		Allow: Allowlist{
			ComposeBin:        composeBin,
			ProxyBin:          proxyBin,
			ServiceManagerBin: serviceManagerBin,
		},
		Transient: NewTransientStore(),
		Log:       logrus.WithField("component", "lifecycle"),
	}
}

// Restart runs the project's restart script if present and executable,
// otherwise `<compose> -f <manifest> restart <service>`. On a "container
// name already in use" diagnostic it removes the conflicting container
// by id and retries once.
func (d *Driver) Restart(ctx context.Context, p *compose.Project, service string, extraArgs string) error {
	d.Transient.Set(p.Dir, service, TransientRestarting)
	defer d.scheduleClear(p.Dir, service, mapperstore.StatusRunning)

	if script := scriptPath(p.Dir, "restart.sh"); script != "" {
		_, _, err := runScript(ctx, script, append(shellArgs(extraArgs), service), startTimeout)
		return err
	}

	args := []string{"compose", "-f", p.ManifestPath, "-p", projectname.Tail(p.Dir), "restart", service}
	_, stderr, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, args, startTimeout)
	if err != nil {
		if id := containerInUseRE.FindStringSubmatch(stderr); id != nil {
			d.Log.WithField("container", id[1]).Info("removing conflicting container and retrying restart")
			rmArgs := []string{"rm", "-f", id[1]}
			runAllowed(ctx, d.Allow, d.Allow.ComposeBin, rmArgs, stopTimeout) //nolint:errcheck
			_, _, err = runAllowed(ctx, d.Allow, d.Allow.ComposeBin, args, startTimeout)
		}
	}
	return err
}

// Stop prefers the project's stop script, else
// `<compose> -f <manifest> stop <service>`.
func (d *Driver) Stop(ctx context.Context, p *compose.Project, service string, extraArgs string) error {
	d.Transient.Set(p.Dir, service, TransientStopping)
	defer d.scheduleClear(p.Dir, service, mapperstore.StatusStopped)

	if script := scriptPath(p.Dir, "stop.sh"); script != "" {
		_, _, err := runScript(ctx, script, append(shellArgs(extraArgs), service), stopTimeout)
		return err
	}
	args := []string{"compose", "-f", p.ManifestPath, "-p", projectname.Tail(p.Dir), "stop", service}
	_, _, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, args, stopTimeout)
	return err
}

// Status intersects `ps --services --filter status=running`, scoped by
// the project name override, with the known service names.
func (d *Driver) Status(ctx context.Context, p *compose.Project, serviceNames []string) (map[string]mapperstore.Status, error) {
	return d.status(ctx, p, serviceNames, true)
}

// status is Status with the transient overlay optional; scheduleClear
// re-observes the CLI state without it.
func (d *Driver) status(ctx context.Context, p *compose.Project, serviceNames []string, overlay bool) (map[string]mapperstore.Status, error) {
	args := []string{"compose", "-f", p.ManifestPath, "-p", projectname.Tail(p.Dir), "ps", "--services", "--filter", "status=running"}
	stdout, _, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, args, statusTimeout)

	running := map[string]bool{}
	if err == nil {
		for _, line := range strings.Split(stdout, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				running[line] = true
			}
		}
	}

	result := map[string]mapperstore.Status{}
	for _, name := range serviceNames {
		if running[name] {
			result[name] = mapperstore.StatusRunning
		} else if err != nil {
			result[name] = mapperstore.StatusUnknown
		} else {
			result[name] = mapperstore.StatusStopped
		}
	}

	// transient overlay: a service mid-operation reports its transient
	// state regardless of what the CLI currently says (Status Aggregator
	// precedence, spec.md 4.6).
	for name, state := range d.Transient.All(p.Dir) {
		if _, ok := result[name]; ok && overlay {
			result[name] = mapperstore.Status(state)
		}
	}

	return result, err
}

// ContainerID resolves the running container id for a service via
// `ps -q <service>`, scoped by the project-name override. Used by
// ptymux to attach a PTY to the right container for the exec action.
func (d *Driver) ContainerID(ctx context.Context, p *compose.Project, service string) (string, error) {
	args := []string{"compose", "-f", p.ManifestPath, "-p", projectname.Tail(p.Dir), "ps", "-q", service}
	stdout, _, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, args, statusTimeout)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(stdout)
	if id == "" {
		return "", fmt.Errorf("container for service %q not found or not running", service)
	}
	return id, nil
}

// ServiceStatuses implements reconcile.StatusProvider.
func (d *Driver) ServiceStatuses(ctx context.Context, projectDir string, serviceNames []string) (map[string]mapperstore.Status, error) {
	p := &compose.Project{Dir: projectDir, ManifestPath: projectDir + "/docker-compose.yml"}
	return d.Status(ctx, p, serviceNames)
}

// ScheduleStatusClear exposes scheduleClear for callers (ptymux) that
// drive the transient-state protocol themselves around a PTY-attached
// stop/restart instead of Driver's own captured-pipe Stop/Restart.
func (d *Driver) ScheduleStatusClear(dir, service string, expect mapperstore.Status) {
	d.scheduleClear(dir, service, expect)
}

// scheduleClear implements the transient-state protocol from spec.md
// section 4.5: after a fixed dwell, re-observe the CLI status and clear
// the transient entry if it matches the terminal expectation. Otherwise
// the entry stays set: status polls do not clear it, and only a later
// Stop/Restart of the same service sets and re-checks it.
func (d *Driver) scheduleClear(dir, service string, expect mapperstore.Status) {
	go func() {
		time.Sleep(dwell)
		p := &compose.Project{Dir: dir, ManifestPath: dir + "/docker-compose.yml"}
		statuses, err := d.status(context.Background(), p, []string{service}, false)
		if err == nil && statuses[service] == expect {
			d.Transient.Clear(dir, service)
			return
		}
		// Leave it set; a later Stop/Restart of this service overwrites
		// it and schedules another check.
	}()
}

func shellArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	args, err := shellwords.Parse(s)
	if err != nil {
		return nil
	}
	return args
}
