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
	"github.com/Neuxbane/fleetd/internal/allocator"
	"github.com/Neuxbane/fleetd/internal/compose"
)

// fixProject rewrites duplicate host ports and duplicate static IPs in
// p, mutating the census in step, per spec.md section 4.4 pass two.
// Singletons are left byte-identical (P3).
func fixProject(p *compose.Project, c *census, subnetBase string) {
	for _, name := range p.ServiceOrder() {
		svc := p.Services[name]
		for i, pm := range svc.Ports {
			if pm.HostPort == 0 || c.portCount[pm.HostPort] <= 1 {
				continue
			}
			c.portCount[pm.HostPort]--
			newPort := allocator.NextHostPort(c.portsUsed())
			c.portCount[newPort]++
			pm.HostPort = newPort
			svc.Ports[i] = pm
		}

		for _, netName := range svc.NetworkOrder() {
			att := svc.Networks[netName]
			if att.IPv4 == "" {
				continue
			}
			if c.ipCount[att.IPv4] <= 1 {
				continue
			}
			c.ipCount[att.IPv4]--
			newIP, err := allocator.NextIPv4(subnetBase, c.ipsUsed())
			if err != nil {
				// Subnet exhausted: leave this attachment colliding rather
				// than corrupt it; it will be retried next tick.
				c.ipCount[att.IPv4]++
				continue
			}
			c.ipCount[newIP]++
			att.IPv4 = newIP
			svc.Networks[netName] = att
		}
	}
}
