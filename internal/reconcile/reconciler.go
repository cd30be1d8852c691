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

// Package reconcile implements the periodic/on-demand scanner described
// in spec.md section 4.4: it discovers projects, detects and fixes
// duplicate host ports and static IPs, writes manifests back, and emits
// the derived Mapper index. It is coordinated with the PTY Multiplexer
// through a shared termcounter.Counter and runs at most one tick at a
// time (spec.md section 5).
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Neuxbane/fleetd/internal/compose"
	"github.com/Neuxbane/fleetd/internal/discovery"
	"github.com/Neuxbane/fleetd/internal/mapperstore"
	"github.com/Neuxbane/fleetd/internal/termcounter"
)

// StatusProvider supplies live per-service status for mapper emission.
// Implemented by the Lifecycle Driver / Status Aggregator; kept as an
// interface here so this package stays decoupled from how status is
// obtained (compose-go's API-client approach vs. this spec's CLI shim).
type StatusProvider interface {
	ServiceStatuses(ctx context.Context, projectDir string, serviceNames []string) (map[string]mapperstore.Status, error)
}

// Reconciler owns one workspace's periodic reconcile loop.
type Reconciler struct {
	Workspace      string
	Signature      discovery.Signature
	DefaultNetwork string
	SubnetBase     string
	Interval       time.Duration
	Counter        *termcounter.Counter
	Store          *mapperstore.Store
	Status         StatusProvider
	Log            *logrus.Entry

	tickMu  sync.Mutex // serializes ticks; a tick already running drops the next
	running bool
}

// New constructs a Reconciler with a non-nil logger.
func New(workspace string, store *mapperstore.Store, counter *termcounter.Counter) *Reconciler {
	return &Reconciler{
		Workspace:      workspace,
		Signature:      discovery.DefaultSignature(),
		DefaultNetwork: "proxy",
		SubnetBase:     "172.28.0.0",
		Interval:       5 * time.Second,
		Counter:        counter,
		Store:          store,
		Log:            logrus.WithField("component", "reconciler"),
	}
}

// TickResult summarizes one reconcile pass for logging/tests.
type TickResult struct {
	Skipped        bool
	ProjectsSeen   int
	ManifestWrites int
	MapperChanged  bool
	Errs           error
}

// Tick runs one reconcile pass. It is a no-op (Skipped=true) whenever
// the active-terminal counter is non-zero (spec.md 4.4 skip rule, P8)
// or another tick is already in flight.
func (r *Reconciler) Tick(ctx context.Context) TickResult {
	if r.Counter != nil && r.Counter.Active() {
		r.Log.Debug("skipping tick: active PTY session")
		return TickResult{Skipped: true}
	}

	if !r.tickMu.TryLock() {
		r.Log.Debug("skipping tick: previous tick still running")
		return TickResult{Skipped: true}
	}
	defer r.tickMu.Unlock()

	found, err := discovery.Walk(r.Workspace, r.Signature)
	if err != nil {
		return TickResult{Errs: fmt.Errorf("discover projects: %w", err)}
	}

	var projects []*compose.Project
	var errs error
	for _, f := range found {
		p, err := compose.Load(f.Dir, f.ManifestPath)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", f.Dir, err))
			r.Log.WithError(err).WithField("project", f.Dir).Warn("skipping unparsable manifest for this tick")
			continue
		}
		projects = append(projects, p)
	}

	collisions := detectNameCollisions(projects)
	c := build(projects)

	writes := 0
	for _, p := range projects {
		if collisions[p.Dir] {
			errs = multierror.Append(errs, fmt.Errorf("%s: project name collision, manifest left unfixed", p.Dir))
			continue
		}
		fixProject(p, c, r.SubnetBase)
		changed, err := compose.WriteIfChanged(p, r.DefaultNetwork)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: write manifest: %w", p.Dir, err))
			continue
		}
		if changed {
			writes++
		}
	}

	mapperChanged := false
	if r.Store != nil {
		m := r.buildMapper(ctx, projects, collisions)
		changed, err := r.Store.WriteIfChanged(m)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("write mapper: %w", err))
		}
		mapperChanged = changed
	}

	return TickResult{
		ProjectsSeen:   len(projects),
		ManifestWrites: writes,
		MapperChanged:  mapperChanged,
		Errs:           errs,
	}
}

func (r *Reconciler) buildMapper(ctx context.Context, projects []*compose.Project, collisions map[string]bool) *mapperstore.Mapper {
	m := mapperstore.New()

	// Each project's status query is its own CLI invocation with its own
	// timeout; fan them out concurrently instead of paying their sum in
	// sequence. Indexed by slot, not a shared map, so no locking is
	// needed around the writes.
	projectNames := make([][]string, len(projects))
	statuses := make([]map[string]mapperstore.Status, len(projects))
	if r.Status != nil {
		g, gctx := errgroup.WithContext(ctx)
		for i, p := range projects {
			i, p := i, p
			projectNames[i] = p.ServiceOrder()
			g.Go(func() error {
				s, err := r.Status.ServiceStatuses(gctx, p.Dir, projectNames[i])
				if err == nil {
					statuses[i] = s
				}
				return nil // a failed status query degrades that project to Unknown, not a tick failure
			})
		}
		g.Wait() //nolint:errcheck // errors are swallowed per-project above
	} else {
		for i, p := range projects {
			projectNames[i] = p.ServiceOrder()
		}
	}

	for i, p := range projects {
		entry := &mapperstore.ProjectEntry{
			ManifestFile:  p.ManifestPath,
			Services:      map[string]*mapperstore.ServiceEntry{},
			NameCollision: collisions[p.Dir],
		}

		names := projectNames[i]
		statuses := statuses[i]

		for _, name := range names {
			svc := p.Services[name]
			se := &mapperstore.ServiceEntry{
				Name:     name,
				Image:    svc.Image,
				Status:   mapperstore.StatusUnknown,
				Networks: map[string]string{},
			}
			if statuses != nil {
				if st, ok := statuses[name]; ok {
					se.Status = st
				}
			}
			for _, pm := range svc.Ports {
				se.Ports = append(se.Ports, mapperstore.PortEntry{
					ContainerPort: pm.ContainerPort,
					HostPort:      pm.HostPort,
					BindAddress:   pm.BindAddress,
				})
			}
			for _, netName := range svc.NetworkOrder() {
				se.Networks[netName] = svc.Networks[netName].IPv4
			}
			entry.Services[name] = se
		}
		m.Projects[p.Dir] = entry
	}
	return m
}

// Run starts the periodic ticker and, best-effort, an fsnotify watcher
// on the workspace root directory, so a write, create or rename directly
// under the root triggers a debounced tick between timer ticks (mirrors
// pkg/watch's debounced fsnotify loop). The watch is not recursive: an
// edit to a manifest inside a project directory waits for the next timer
// tick. Run blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.Log.WithError(err).Warn("fsnotify unavailable, falling back to timer-only reconcile")
		watcher = nil
	} else {
		defer watcher.Close()
		if err := watcher.Add(r.Workspace); err != nil {
			r.Log.WithError(err).Warn("failed to watch workspace root")
		}
	}

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	runTick := func() {
		res := r.Tick(ctx)
		if res.Errs != nil {
			r.Log.WithError(res.Errs).Warn("reconcile tick completed with errors")
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runTick()
		case ev := <-watcherEvents(watcher):
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce.Reset(quietPeriod)
			}
		case <-debounce.C:
			runTick()
		}
	}
}

const quietPeriod = 2 * time.Second

func watcherEvents(w *fsnotify.Watcher) <-chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.Events
}
