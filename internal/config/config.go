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

// Package config centralizes the environment variables this process
// reads, mirroring the plain os.Getenv-plus-documented-constant style
// cmd/compose uses for its own COMPOSE_* knobs.
package config

import (
	"os"
	"strconv"
	"time"
)

const (
	// EnvWorkspace is the workspace root containing project directories.
	EnvWorkspace = "FLEETD_WORKSPACE"
	// EnvBindAddress is the HTTP/WS bind address.
	EnvBindAddress = "FLEETD_BIND_ADDRESS"
	// EnvHTTPPort is the plain HTTP port.
	EnvHTTPPort = "FLEETD_HTTP_PORT"
	// EnvHTTPSPort is the TLS-terminated port; TLS is only used if both
	// the cert and key paths below are set.
	EnvHTTPSPort = "FLEETD_HTTPS_PORT"
	// EnvTLSCertPath and EnvTLSKeyPath locate an optional TLS keypair.
	EnvTLSCertPath = "FLEETD_TLS_CERT"
	EnvTLSKeyPath  = "FLEETD_TLS_KEY"
	// EnvAdminPassword is the plaintext password compared at /api/login.
	EnvAdminPassword = "FLEETD_ADMIN_PASSWORD"
	// EnvCORSOrigins is a comma-separated allowed-origin list.
	EnvCORSOrigins = "FLEETD_CORS_ORIGINS"
	// EnvDefaultNetwork names the network that is always preserved at
	// the manifest top level even when unreferenced.
	EnvDefaultNetwork = "FLEETD_DEFAULT_NETWORK"
	// EnvSubnetBase is the /24 base used for static IP allocation.
	EnvSubnetBase = "FLEETD_SUBNET_BASE"
	// EnvReconcileInterval overrides the default 5s tick.
	EnvReconcileInterval = "FLEETD_RECONCILE_INTERVAL"
	// EnvComposeBin and EnvProxyBin name the allowed external binaries.
	EnvComposeBin = "FLEETD_COMPOSE_BIN"
	EnvProxyBin   = "FLEETD_PROXY_BIN"
	// EnvProxyConfigPath is the live reverse-proxy config file.
	EnvProxyConfigPath = "FLEETD_PROXY_CONFIG"
	// EnvAccessLogPaths is a comma-separated list of access log files.
	EnvAccessLogPaths = "FLEETD_ACCESS_LOGS"
	// EnvMapperPath is where the derived mapper index is persisted.
	EnvMapperPath = "FLEETD_MAPPER_PATH"
)

// Config is the fully resolved process configuration.
type Config struct {
	Workspace          string
	BindAddress        string
	HTTPPort           string
	HTTPSPort          string
	TLSCertPath        string
	TLSKeyPath         string
	AdminPassword      string
	CORSOrigins        []string
	DefaultNetworkName string
	SubnetBase         string
	ReconcileInterval  time.Duration
	ComposeBin         string
	ProxyBin           string
	ProxyConfigPath    string
	AccessLogPaths     []string
	MapperPath         string
}

// FromEnv resolves a Config from the process environment, matching
// defaults documented in spec.md section 6.
func FromEnv() Config {
	cwd, _ := os.Getwd()
	c := Config{
		Workspace:          getenv(EnvWorkspace, cwd),
		BindAddress:        getenv(EnvBindAddress, "127.0.0.1"),
		HTTPPort:           getenv(EnvHTTPPort, "8080"),
		HTTPSPort:          getenv(EnvHTTPSPort, ""),
		TLSCertPath:        getenv(EnvTLSCertPath, ""),
		TLSKeyPath:         getenv(EnvTLSKeyPath, ""),
		AdminPassword:      os.Getenv(EnvAdminPassword),
		DefaultNetworkName: getenv(EnvDefaultNetwork, "proxy"),
		SubnetBase:         getenv(EnvSubnetBase, "172.28.0.0"),
		ComposeBin:         getenv(EnvComposeBin, "docker"),
		ProxyBin:           getenv(EnvProxyBin, "nginx"),
		ProxyConfigPath:    getenv(EnvProxyConfigPath, "/etc/nginx/nginx.conf"),
		MapperPath:         getenv(EnvMapperPath, "mapper.json"),
	}
	c.CORSOrigins = splitNonEmpty(os.Getenv(EnvCORSOrigins))
	c.AccessLogPaths = splitNonEmpty(os.Getenv(EnvAccessLogPaths))
	c.ReconcileInterval = 5 * time.Second
	if v := os.Getenv(EnvReconcileInterval); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.ReconcileInterval = time.Duration(secs) * time.Second
		}
	}
	return c
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
