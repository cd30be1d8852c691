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
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParsePort decodes one of the three serialized port forms:
//
//	"C"       -> container port only, host port unassigned
//	"H:C"     -> host:container, default bind address
//	"B:H:C"   -> bind:host:container
//
// ok is false when the string cannot be reduced to a valid triple, in
// which case the entry is dropped on next serialize per spec.md 4.1.
func ParsePort(s string) (PortMapping, bool) {
	parts := strings.Split(s, ":")
	var bind, host, cport string
	switch len(parts) {
	case 1:
		cport = parts[0]
	case 2:
		host, cport = parts[0], parts[1]
	case 3:
		bind, host, cport = parts[0], parts[1], parts[2]
	default:
		return PortMapping{}, false
	}

	c, err := strconv.Atoi(strings.TrimSpace(cport))
	if err != nil || c < 1 || c > 65535 {
		return PortMapping{}, false
	}
	pm := PortMapping{ContainerPort: c}

	if host != "" {
		h, err := strconv.Atoi(strings.TrimSpace(host))
		if err != nil || h < 1 || h > 65535 {
			return PortMapping{}, false
		}
		pm.HostPort = h
	}

	if bind != "" {
		if !isValidBindAddress(bind) {
			return PortMapping{}, false
		}
		pm.BindAddress = bind
	}

	return pm, true
}

func isValidBindAddress(s string) bool {
	if s == "0.0.0.0" || s == "127.0.0.1" {
		return true
	}
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// Format renders a PortMapping back to its canonical string form,
// choosing the shortest form that round-trips the mapping's data.
func (pm PortMapping) Format() (string, bool) {
	if pm.ContainerPort < 1 || pm.ContainerPort > 65535 {
		return "", false
	}
	if pm.HostPort == 0 {
		if pm.BindAddress != "" {
			// A bind address without a host port cannot be expressed; drop it.
			return "", false
		}
		return strconv.Itoa(pm.ContainerPort), true
	}
	if pm.BindAddress == "" {
		return fmt.Sprintf("%d:%d", pm.HostPort, pm.ContainerPort), true
	}
	return fmt.Sprintf("%s:%d:%d", pm.BindAddress, pm.HostPort, pm.ContainerPort), true
}
