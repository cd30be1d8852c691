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

package proxyedit

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Upstream is one `upstream <name> { server ...; }` block.
type Upstream struct {
	Name    string   `json:"name"`
	Servers []string `json:"servers"`
}

// Location is one `location <path> { ... }` block inside a server.
type Location struct {
	Location  string `json:"location" mapstructure:"location"`
	ProxyPass string `json:"proxyPass,omitempty" mapstructure:"proxy_pass"`
	Redirect  string `json:"redirect,omitempty" mapstructure:"redirect"`
	Raw       string `json:"raw" mapstructure:"raw"`
}

// Server is one `server { ... }` block.
type Server struct {
	Listen            []string   `json:"listen"`
	ServerName        []string   `json:"serverName"`
	SSLCertificate    string     `json:"sslCertificate,omitempty"`
	SSLCertificateKey string     `json:"sslCertificateKey,omitempty"`
	Locations         []Location `json:"locations"`
}

// Config is the structure recovered from the live proxy config file.
type Config struct {
	Upstreams []Upstream `json:"upstreams"`
	Servers   []Server   `json:"servers"`
}

// Parse tokenizes src and walks the resulting block tree into a
// Config, recursing through wrapper blocks (http, events, ...) to find
// every upstream and server regardless of nesting depth.
func Parse(src string) (*Config, error) {
	blocks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	collect(blocks, cfg)
	return cfg, nil
}

func collect(blocks []rawBlock, cfg *Config) {
	for _, b := range blocks {
		fields := strings.Fields(b.header)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "upstream":
			cfg.Upstreams = append(cfg.Upstreams, parseUpstream(fields, b.body))
		case "server":
			cfg.Servers = append(cfg.Servers, parseServer(b.body))
		default:
			if b.hasBody {
				collect(b.body, cfg)
			}
		}
	}
}

func parseUpstream(headerFields []string, body []rawBlock) Upstream {
	u := Upstream{}
	if len(headerFields) > 1 {
		u.Name = headerFields[1]
	}
	for _, d := range body {
		df := strings.Fields(d.header)
		if len(df) >= 2 && df[0] == "server" {
			u.Servers = append(u.Servers, df[1])
		}
	}
	return u
}

func parseServer(body []rawBlock) Server {
	var s Server
	for _, d := range body {
		if d.hasBody && strings.HasPrefix(d.header, "location") {
			s.Locations = append(s.Locations, parseLocation(d))
			continue
		}
		df := strings.Fields(d.header)
		if len(df) < 2 {
			continue
		}
		switch df[0] {
		case "listen":
			s.Listen = append(s.Listen, df[1])
		case "server_name":
			s.ServerName = append(s.ServerName, df[1:]...)
		case "ssl_certificate":
			s.SSLCertificate = df[1]
		case "ssl_certificate_key":
			s.SSLCertificateKey = df[1]
		}
	}
	return s
}

// parseLocation decodes a location block's directives into a Location
// via mapstructure rather than a hand-rolled field switch, the same
// "decode a loosely typed map into a struct by tag" idiom mapstructure
// is built for.
func parseLocation(b rawBlock) Location {
	data := map[string]any{"raw": renderBlock(b)}
	fields := strings.Fields(b.header)
	if len(fields) > 1 {
		data["location"] = strings.Join(fields[1:], " ")
	}
	for _, d := range b.body {
		df := strings.Fields(d.header)
		if len(df) < 2 {
			continue
		}
		switch df[0] {
		case "proxy_pass":
			data["proxy_pass"] = df[1]
		case "return", "rewrite":
			data["redirect"] = strings.Join(df[1:], " ")
		}
	}
	var loc Location
	mapstructure.Decode(data, &loc) //nolint:errcheck
	return loc
}
