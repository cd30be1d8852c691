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

// Package status implements the Status Aggregator of spec.md section
// 4.6: it answers GET /api/status on demand by merging the persisted
// mapper, a fresh live-CLI query, and TransientStatus, with precedence
// transient > live CLI > unknown. The Reconciler performs the same
// merge in bulk once per tick when it rebuilds the mapper; this package
// exists so the HTTP surface can get an up-to-the-second answer for one
// project without waiting for the next tick.
package status

import (
	"context"

	"github.com/Neuxbane/fleetd/internal/apierr"
	"github.com/Neuxbane/fleetd/internal/mapperstore"
)

// LiveQuery fetches current status for the given services from the
// container CLI. It is satisfied by *lifecycle.Driver's ServiceStatuses
// method; status stays independent of the lifecycle package's concrete
// type, the same way reconcile.StatusProvider does.
type LiveQuery func(ctx context.Context, projectDir string, serviceNames []string) (map[string]mapperstore.Status, error)

// TransientQuery returns the current transient state string per service
// name for a project, or omits a service with no transient entry.
type TransientQuery func(projectDir string) map[string]string

// Aggregator answers on-demand status queries.
type Aggregator struct {
	Mapper    *mapperstore.Store
	Live      LiveQuery
	Transient TransientQuery
}

func New(mapper *mapperstore.Store, live LiveQuery, transient TransientQuery) *Aggregator {
	return &Aggregator{Mapper: mapper, Live: live, Transient: transient}
}

// Query returns a copy of the mapper's ProjectEntry for projectDir with
// every service's Status recomputed per the precedence rule. If
// serviceNames is empty, every service already known to the mapper is
// queried.
func (a *Aggregator) Query(ctx context.Context, projectDir string, serviceNames []string) (*mapperstore.ProjectEntry, error) {
	mapper := a.Mapper.Current()
	entry, ok := mapper.Projects[projectDir]
	if !ok {
		return nil, apierr.NotFoundf("project %q not found", projectDir)
	}

	if len(serviceNames) == 0 {
		for name := range entry.Services {
			serviceNames = append(serviceNames, name)
		}
	}

	live, liveErr := a.Live(ctx, projectDir, serviceNames)
	transient := a.Transient(projectDir)

	out := &mapperstore.ProjectEntry{
		ManifestFile:  entry.ManifestFile,
		NameCollision: entry.NameCollision,
		Services:      map[string]*mapperstore.ServiceEntry{},
	}
	for _, name := range serviceNames {
		src, ok := entry.Services[name]
		if !ok {
			continue
		}
		se := &mapperstore.ServiceEntry{
			Name:     src.Name,
			Image:    src.Image,
			Ports:    src.Ports,
			Networks: src.Networks,
			Status:   mapperstore.StatusUnknown,
		}
		switch {
		case transient[name] != "":
			se.Status = mapperstore.Status(transient[name])
		case liveErr == nil:
			if st, ok := live[name]; ok {
				se.Status = st
			}
		}
		out.Services[name] = se
	}
	return out, liveErr
}
