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

// Package compose implements the Compose I/O component: loading a
// compose manifest into an in-memory tree that preserves key order and
// unrecognized fields, and serializing it back with the normalizations
// spec.md section 4.1 describes.
package compose

import "gopkg.in/yaml.v3"

// RestartPolicy is the recognized subset of the compose `restart` key.
type RestartPolicy string

const (
	RestartUnset         RestartPolicy = ""
	RestartNo            RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// PortMapping is the semantic tuple behind compose's "C" / "H:C" /
// "B:H:C" port strings.
type PortMapping struct {
	ContainerPort int
	HostPort      int // 0 means unassigned
	BindAddress   string
}

// VolumeMapping is kept as the raw string form; no component in this
// spec manipulates volumes semantically, only preserves them.
type VolumeMapping struct {
	Raw string
}

// EnvEntry is one environment variable. HasValue is false only for a
// list-form entry written without `=` (a bare `KEY`).
type EnvEntry struct {
	Key      string
	Value    string
	HasValue bool
}

// NetworkAttachment describes a service's attachment to one network.
type NetworkAttachment struct {
	IPv4   string // empty if no static IP
	IsBare bool   // manifest carried a bare IPv4 string, not a mapping
}

// Service is one service definition inside a project's manifest.
type Service struct {
	Name        string
	Image       string
	Restart     RestartPolicy
	Ports       []PortMapping
	Volumes     []VolumeMapping
	Env         []EnvEntry
	Networks    map[string]NetworkAttachment
	networkKeys []string // preserves declaration order of Networks

	node *yaml.Node // this service's mapping node, for unrecognized-key round-trip
}

// NetworkOrder returns network names in declaration order.
func (s *Service) NetworkOrder() []string {
	return append([]string(nil), s.networkKeys...)
}

// Project is a discovered compose project directory.
type Project struct {
	Dir          string // absolute directory path
	ManifestPath string
	Services     map[string]*Service
	serviceOrder []string

	doc *yaml.Node // full manifest document node
}

// ServiceOrder returns service names in the order they appear in the manifest.
func (p *Project) ServiceOrder() []string {
	return append([]string(nil), p.serviceOrder...)
}
