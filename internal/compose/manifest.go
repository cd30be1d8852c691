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

import (
	"bytes"
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// Load parses a compose manifest at path into a Project rooted at dir.
func Load(dir, path string) (*Project, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(doc.Content) == 0 {
		// empty file: synthesize an empty mapping document
		doc.Kind = yaml.DocumentNode
		doc.Content = []*yaml.Node{mappingNode()}
	}

	p := &Project{
		Dir:          dir,
		ManifestPath: path,
		Services:     map[string]*Service{},
		doc:          &doc,
	}

	root := doc.Content[0]
	servicesNode := mapGet(root, "services")
	if servicesNode != nil {
		for i := 0; i+1 < len(servicesNode.Content); i += 2 {
			nameNode := servicesNode.Content[i]
			svcNode := servicesNode.Content[i+1]
			svc, err := parseService(nameNode.Value, svcNode)
			if err != nil {
				return nil, fmt.Errorf("service %s in %s: %w", nameNode.Value, path, err)
			}
			p.Services[svc.Name] = svc
			p.serviceOrder = append(p.serviceOrder, svc.Name)
		}
	}
	return p, nil
}

func parseService(name string, node *yaml.Node) (*Service, error) {
	s := &Service{Name: name, Networks: map[string]NetworkAttachment{}, node: node}

	if img := mapGet(node, "image"); img != nil {
		s.Image = img.Value
	}
	if r := mapGet(node, "restart"); r != nil {
		s.Restart = RestartPolicy(r.Value)
	}

	if ports := mapGet(node, "ports"); ports != nil && ports.Kind == yaml.SequenceNode {
		for _, pn := range ports.Content {
			switch pn.Kind {
			case yaml.ScalarNode:
				if pm, ok := ParsePort(pn.Value); ok {
					s.Ports = append(s.Ports, pm)
				}
			case yaml.MappingNode:
				if pm, ok := portFromMapping(pn); ok {
					s.Ports = append(s.Ports, pm)
				}
			}
		}
	}

	if vols := mapGet(node, "volumes"); vols != nil && vols.Kind == yaml.SequenceNode {
		for _, vn := range vols.Content {
			if vn.Kind == yaml.ScalarNode {
				s.Volumes = append(s.Volumes, VolumeMapping{Raw: vn.Value})
			}
		}
	}

	if env := mapGet(node, "environment"); env != nil {
		switch env.Kind {
		case yaml.SequenceNode:
			for _, en := range env.Content {
				k, v, has := splitEnv(en.Value)
				s.Env = append(s.Env, EnvEntry{Key: k, Value: v, HasValue: has})
			}
		case yaml.MappingNode:
			for i := 0; i+1 < len(env.Content); i += 2 {
				k := env.Content[i].Value
				v := env.Content[i+1]
				s.Env = append(s.Env, EnvEntry{Key: k, Value: v.Value, HasValue: true})
			}
		}
	}

	if nets := mapGet(node, "networks"); nets != nil {
		switch nets.Kind {
		case yaml.MappingNode:
			for i := 0; i+1 < len(nets.Content); i += 2 {
				netName := nets.Content[i].Value
				valNode := nets.Content[i+1]
				att := NetworkAttachment{}
				if valNode.Kind == yaml.ScalarNode && valNode.Tag != "!!null" {
					// bare IPv4 string shorthand
					if net.ParseIP(valNode.Value) != nil {
						att.IPv4 = valNode.Value
						att.IsBare = true
					}
				} else if valNode.Kind == yaml.MappingNode {
					if ip := mapGet(valNode, "ipv4_address"); ip != nil {
						att.IPv4 = ip.Value
					}
				}
				s.Networks[netName] = att
				s.networkKeys = append(s.networkKeys, netName)
			}
		case yaml.SequenceNode:
			for _, nn := range nets.Content {
				s.Networks[nn.Value] = NetworkAttachment{}
				s.networkKeys = append(s.networkKeys, nn.Value)
			}
		}
	}

	return s, nil
}

func portFromMapping(node *yaml.Node) (PortMapping, bool) {
	pm := PortMapping{}
	if t := mapGet(node, "target"); t != nil {
		fmt.Sscanf(t.Value, "%d", &pm.ContainerPort)
	}
	if h := mapGet(node, "published"); h != nil {
		fmt.Sscanf(h.Value, "%d", &pm.HostPort)
	}
	if b := mapGet(node, "host_ip"); b != nil {
		pm.BindAddress = b.Value
	}
	if pm.ContainerPort < 1 || pm.ContainerPort > 65535 {
		return PortMapping{}, false
	}
	return pm, true
}

func splitEnv(s string) (key, value string, hasValue bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// mapGet returns the value node for key in a YAML mapping node, or nil.
func mapGet(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// mapSet sets key to value in a YAML mapping node, inserting at the end
// if the key is absent, preserving existing key order otherwise.
func mapSet(node *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			node.Content[i+1] = value
			return
		}
	}
	node.Content = append(node.Content, scalarNode(key), value)
}

// mapDelete removes key from a YAML mapping node if present.
func mapDelete(node *yaml.Node, key string) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			node.Content = append(node.Content[:i], node.Content[i+2:]...)
			return
		}
	}
}

func scalarNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func sequenceNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
}

// Serialize applies the normalizations from spec.md section 4.1 to the
// project's in-memory tree and renders it to YAML bytes.
func Serialize(p *Project, defaultNetwork string) ([]byte, error) {
	root := p.doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("manifest root is not a mapping")
	}

	mapDelete(root, "version")

	servicesNode := mapGet(root, "services")
	if servicesNode == nil {
		servicesNode = mappingNode()
		mapSet(root, "services", servicesNode)
	}

	referenced := map[string]bool{}
	for _, name := range p.serviceOrder {
		svc := p.Services[name]
		if svc == nil {
			continue
		}
		writeServicePorts(svc)
		writeServiceNetworks(svc)
		for n := range svc.Networks {
			referenced[n] = true
		}
		mapSet(servicesNode, name, svc.node)
	}
	// drop services no longer present (deletions via Apply)
	pruneServices(servicesNode, p.serviceOrder)

	applyNetworksClosure(root, referenced, defaultNetwork)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p.doc); err != nil {
		return nil, fmt.Errorf("serialize manifest: %w", err)
	}
	enc.Close()
	return buf.Bytes(), nil
}

func pruneServices(servicesNode *yaml.Node, keep []string) {
	keepSet := map[string]bool{}
	for _, k := range keep {
		keepSet[k] = true
	}
	var out []*yaml.Node
	for i := 0; i+1 < len(servicesNode.Content); i += 2 {
		if keepSet[servicesNode.Content[i].Value] {
			out = append(out, servicesNode.Content[i], servicesNode.Content[i+1])
		}
	}
	servicesNode.Content = out
}

func writeServicePorts(svc *Service) {
	if len(svc.Ports) == 0 {
		mapDelete(svc.node, "ports")
		return
	}
	seq := sequenceNode()
	for _, pm := range svc.Ports {
		if s, ok := pm.Format(); ok {
			seq.Content = append(seq.Content, scalarNode(s))
		}
	}
	mapSet(svc.node, "ports", seq)
}

func writeServiceNetworks(svc *Service) {
	if len(svc.networkKeys) == 0 {
		return
	}
	netsNode := mapGet(svc.node, "networks")
	if netsNode == nil || netsNode.Kind != yaml.MappingNode {
		netsNode = mappingNode()
		mapSet(svc.node, "networks", netsNode)
	}
	for _, name := range svc.networkKeys {
		att := svc.Networks[name]
		var valNode *yaml.Node
		if att.IPv4 != "" {
			inner := mappingNode()
			mapSet(inner, "ipv4_address", scalarNode(att.IPv4))
			valNode = inner
		} else {
			valNode = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
		}
		mapSet(netsNode, name, valNode)
	}
}

// applyNetworksClosure implements spec.md 4.1's top-level networks rule:
// every referenced network must exist at top level (inserted external if
// missing); every unreferenced top-level network is removed, except the
// configured default.
func applyNetworksClosure(root *yaml.Node, referenced map[string]bool, defaultNetwork string) {
	topNets := mapGet(root, "networks")
	if topNets == nil || topNets.Kind != yaml.MappingNode {
		topNets = mappingNode()
		mapSet(root, "networks", topNets)
	}

	present := map[string]bool{}
	for i := 0; i+1 < len(topNets.Content); i += 2 {
		present[topNets.Content[i].Value] = true
	}

	for name := range referenced {
		if !present[name] {
			ext := mappingNode()
			mapSet(ext, "external", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
			mapSet(ext, "name", scalarNode(name))
			mapSet(topNets, name, ext)
			present[name] = true
		}
	}

	var kept []*yaml.Node
	for i := 0; i+1 < len(topNets.Content); i += 2 {
		name := topNets.Content[i].Value
		if referenced[name] || name == defaultNetwork {
			kept = append(kept, topNets.Content[i], topNets.Content[i+1])
		}
	}
	topNets.Content = kept

	if len(topNets.Content) == 0 {
		mapDelete(root, "networks")
	}
}
