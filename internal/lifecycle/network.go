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
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Neuxbane/fleetd/internal/apierr"
)

const networkTimeout = 10 * time.Second

// builtin networks the container runtime always provides; GET /api/networks
// reports them but create/delete/update refuse to touch them (spec.md
// section 7's "builtin network uneditable" conflict).
var builtinNetworks = map[string]bool{"bridge": true, "host": true, "none": true}

// NetworkInfo is one entry of GET /api/networks, enriched with the IPAM
// subnet/gateway an inspect call carries beyond a bare `network ls`.
type NetworkInfo struct {
	Name    string `json:"name"`
	Driver  string `json:"driver"`
	Subnet  string `json:"subnet,omitempty"`
	Gateway string `json:"gateway,omitempty"`
	Builtin bool   `json:"builtin"`
}

type dockerNetworkInspect struct {
	Name   string `json:"Name"`
	Driver string `json:"Driver"`
	IPAM   struct {
		Config []struct {
			Subnet  string `json:"Subnet"`
			Gateway string `json:"Gateway"`
		} `json:"Config"`
	} `json:"IPAM"`
}

// NetworkList enriches `network ls` with per-network IPAM data via
// `network inspect`, the shape spec.md section 6 asks for.
func (d *Driver) NetworkList(ctx context.Context) ([]NetworkInfo, error) {
	stdout, _, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, []string{"network", "ls", "--format", "{{.Name}}"}, networkTimeout)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	args := append([]string{"network", "inspect"}, names...)
	out, _, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, args, networkTimeout)
	if err != nil {
		return nil, err
	}
	var raw []dockerNetworkInspect
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, apierr.Wrap(apierr.Internal, err, "parsing network inspect output")
	}

	result := make([]NetworkInfo, 0, len(raw))
	for _, n := range raw {
		info := NetworkInfo{Name: n.Name, Driver: n.Driver, Builtin: builtinNetworks[n.Name]}
		if len(n.IPAM.Config) > 0 {
			info.Subnet = n.IPAM.Config[0].Subnet
			info.Gateway = n.IPAM.Config[0].Gateway
		}
		result = append(result, info)
	}
	return result, nil
}

// NetworkCreate runs `network create` with an optional static subnet and
// gateway.
func (d *Driver) NetworkCreate(ctx context.Context, name, subnet, gateway string) error {
	if builtinNetworks[name] {
		return apierr.Conflictf("network %q is builtin and cannot be created", name)
	}
	args := []string{"network", "create"}
	if subnet != "" {
		args = append(args, "--subnet", subnet)
	}
	if gateway != "" {
		args = append(args, "--gateway", gateway)
	}
	args = append(args, name)
	_, _, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, args, networkTimeout)
	return err
}

// NetworkDelete runs `network rm`, refusing builtin networks.
func (d *Driver) NetworkDelete(ctx context.Context, name string) error {
	if builtinNetworks[name] {
		return apierr.Conflictf("network %q is builtin and cannot be removed", name)
	}
	_, _, err := runAllowed(ctx, d.Allow, d.Allow.ComposeBin, []string{"network", "rm", name}, networkTimeout)
	return err
}

// NetworkUpdate recreates a network with new IPAM settings: the container
// CLI has no in-place IPAM update, so this removes and re-creates it, per
// the "recreate-with-IPAM" semantics spec.md section 6 names.
func (d *Driver) NetworkUpdate(ctx context.Context, name, subnet, gateway string) error {
	if builtinNetworks[name] {
		return apierr.Conflictf("network %q is builtin and cannot be updated", name)
	}
	if err := d.NetworkDelete(ctx, name); err != nil {
		return err
	}
	return d.NetworkCreate(ctx, name, subnet, gateway)
}
