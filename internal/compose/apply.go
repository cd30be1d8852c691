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

package compose

// ServiceSpec is the wire shape POST /api/apply accepts for one service.
// A zero HostPort in any port means "allocate one automatically".
type ServiceSpec struct {
	Image    string
	Restart  RestartPolicy
	Ports    []PortSpec
	Networks map[string]string // network name -> ipv4 ("" for none)
}

type PortSpec struct {
	ContainerPort int
	HostPort      int
	BindAddress   string
}

// Apply upserts and deletes services in p per spec.md section 4.5:
// services missing from the map are deletions, new entries are
// additions, present entries are upserts. allocPort is called once per
// port with an unspecified host port and should return a free one
// (typically allocator.NextHostPort scoped to a workspace-wide used
// set); it is a callback so this package stays independent of the
// allocator package's call signature. Networks are replaced wholesale;
// an empty map clears all attachments.
func Apply(p *Project, services map[string]ServiceSpec, allocPort func() int) {
	keep := make([]string, 0, len(services))
	names := sortedStrings(keysOf(services))
	for _, name := range names {
		keep = append(keep, name)
		spec := services[name]
		svc, existed := p.Services[name]
		if !existed {
			svc = &Service{Name: name, node: mappingNode()}
			p.Services[name] = svc
		}
		svc.Image = spec.Image
		svc.Restart = spec.Restart
		mapSet(svc.node, "image", scalarNode(spec.Image))
		if spec.Restart != RestartUnset {
			mapSet(svc.node, "restart", scalarNode(string(spec.Restart)))
		} else {
			mapDelete(svc.node, "restart")
		}

		svc.Ports = nil
		for _, ps := range spec.Ports {
			if ps.HostPort == 0 && allocPort != nil {
				ps.HostPort = allocPort()
			}
			svc.Ports = append(svc.Ports, PortMapping{
				ContainerPort: ps.ContainerPort,
				HostPort:      ps.HostPort,
				BindAddress:   ps.BindAddress,
			})
		}

		svc.Networks = map[string]NetworkAttachment{}
		svc.networkKeys = nil
		netNames := sortedStrings(keysOfStringMap(spec.Networks))
		for _, netName := range netNames {
			svc.Networks[netName] = NetworkAttachment{IPv4: spec.Networks[netName]}
			svc.networkKeys = append(svc.networkKeys, netName)
		}
		mapDelete(svc.node, "networks")
	}

	for name := range p.Services {
		if !contains(keep, name) {
			delete(p.Services, name)
		}
	}
	p.serviceOrder = reorder(p.serviceOrder, keep)
}

func keysOf(m map[string]ServiceSpec) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func keysOfStringMap(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func sortedStrings(s []string) []string {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func reorder(existing, keep []string) []string {
	keepSet := map[string]bool{}
	for _, k := range keep {
		keepSet[k] = true
	}
	var out []string
	seen := map[string]bool{}
	for _, name := range existing {
		if keepSet[name] && !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	for _, name := range keep {
		if !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	return out
}
