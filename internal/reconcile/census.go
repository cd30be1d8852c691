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

package reconcile

import (
	"github.com/Neuxbane/fleetd/internal/compose"
	"github.com/Neuxbane/fleetd/internal/projectname"
)

// census is the frozen-before-mutation view computed in pass one, per
// spec.md section 4.4.
type census struct {
	portCount      map[int]int
	ipCount        map[string]int
	referencedNets map[string]map[string]bool // project dir -> network name -> referenced
}

func newCensus() *census {
	return &census{
		portCount:      map[int]int{},
		ipCount:        map[string]int{},
		referencedNets: map[string]map[string]bool{},
	}
}

// build scans every service in every project and accumulates the two
// multisets described in spec.md 4.4 pass one.
func build(projects []*compose.Project) *census {
	c := newCensus()
	for _, p := range projects {
		refs := map[string]bool{}
		c.referencedNets[p.Dir] = refs
		for _, name := range p.ServiceOrder() {
			svc := p.Services[name]
			for _, pm := range svc.Ports {
				if pm.HostPort != 0 {
					c.portCount[pm.HostPort]++
				}
			}
			for netName, att := range svc.Networks {
				refs[netName] = true
				if att.IPv4 != "" {
					c.ipCount[att.IPv4]++
				}
			}
		}
	}
	return c
}

// portsUsed collapses the port-count multiset into the presence set
// allocator.NextHostPort expects.
func (c *census) portsUsed() map[int]bool {
	used := make(map[int]bool, len(c.portCount))
	for port, n := range c.portCount {
		if n > 0 {
			used[port] = true
		}
	}
	return used
}

// ipsUsed collapses the IP-count multiset into the presence set
// allocator.NextIPv4 expects.
func (c *census) ipsUsed() map[string]bool {
	used := make(map[string]bool, len(c.ipCount))
	for ip, n := range c.ipCount {
		if n > 0 {
			used[ip] = true
		}
	}
	return used
}

// detectNameCollisions returns the set of project directories whose
// projectname.Tail collides with another discovered project's tail,
// per the process-name-scoping Open Question in spec.md section 9.
func detectNameCollisions(projects []*compose.Project) map[string]bool {
	byTail := map[string][]string{}
	for _, p := range projects {
		tail := projectname.Tail(p.Dir)
		byTail[tail] = append(byTail[tail], p.Dir)
	}
	collided := map[string]bool{}
	for _, dirs := range byTail {
		if len(dirs) > 1 {
			for _, d := range dirs {
				collided[d] = true
			}
		}
	}
	return collided
}
