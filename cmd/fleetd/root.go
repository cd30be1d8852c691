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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Neuxbane/fleetd/internal/config"
	"github.com/Neuxbane/fleetd/internal/lifecycle"
	"github.com/Neuxbane/fleetd/internal/mapperstore"
	"github.com/Neuxbane/fleetd/internal/proxyedit"
	"github.com/Neuxbane/fleetd/internal/ptymux"
	"github.com/Neuxbane/fleetd/internal/reconcile"
	"github.com/Neuxbane/fleetd/internal/status"
	"github.com/Neuxbane/fleetd/internal/termcounter"
)

// newRootCmd mirrors cmd/compose/compose.go's root-command-plus-env-var
// style: config.FromEnv resolves defaults, and a handful of pflag flags
// override them for operators who don't want to export env vars.
func newRootCmd() *cobra.Command {
	cfg := config.FromEnv()

	root := &cobra.Command{
		Use:           "fleetd",
		Short:         "Self-hosted control plane for a fleet of Docker Compose projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	bindFlags(flags, &cfg)

	root.AddCommand(newServeCmd(&cfg))
	root.AddCommand(newReconcileCmd(&cfg))
	return root
}

func bindFlags(flags *pflag.FlagSet, cfg *config.Config) {
	flags.StringVar(&cfg.Workspace, "workspace", cfg.Workspace, "workspace root directory")
	flags.StringVar(&cfg.BindAddress, "bind-address", cfg.BindAddress, "HTTP/WS bind address")
	flags.StringVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "HTTP port")
	flags.StringVar(&cfg.ComposeBin, "compose-bin", cfg.ComposeBin, "container CLI binary")
	flags.StringVar(&cfg.ProxyBin, "proxy-bin", cfg.ProxyBin, "reverse-proxy binary")
}

// components bundles everything both subcommands need, built once from a
// resolved Config.
type components struct {
	Mapper     *mapperstore.Store
	Driver     *lifecycle.Driver
	Counter    *termcounter.Counter
	Reconciler *reconcile.Reconciler
	Status     *status.Aggregator
	PTY        *ptymux.Multiplexer
	ProxyCtrl  proxyedit.Controller
}

func build(cfg config.Config) (*components, error) {
	mapper := mapperstore.NewStore(cfg.MapperPath)
	if err := mapper.Load(); err != nil {
		return nil, err
	}

	driver := lifecycle.NewDriver(cfg.ComposeBin, cfg.ProxyBin, "systemctl")
	counter := &termcounter.Counter{}

	rec := reconcile.New(cfg.Workspace, mapper, counter)
	rec.DefaultNetwork = cfg.DefaultNetworkName
	rec.SubnetBase = cfg.SubnetBase
	rec.Interval = cfg.ReconcileInterval
	rec.Status = driver

	agg := status.New(mapper, driver.ServiceStatuses, func(dir string) map[string]string {
		out := map[string]string{}
		for svc, st := range driver.Transient.All(dir) {
			out[svc] = string(st)
		}
		return out
	})

	pty := ptymux.New(driver, mapper, counter, cfg.AccessLogPaths)

	proxyCtrl := &proxyedit.BinController{
		ProxyBin:          cfg.ProxyBin,
		ServiceManagerBin: "systemctl",
		ServiceName:       "nginx",
	}

	return &components{
		Mapper:     mapper,
		Driver:     driver,
		Counter:    counter,
		Reconciler: rec,
		Status:     agg,
		PTY:        pty,
		ProxyCtrl:  proxyCtrl,
	}, nil
}

// notifyContext returns a context cancelled on SIGINT/SIGTERM, the same
// shutdown trigger cmd/compose/compose.go's AdaptCmd wires up for every
// long-running command.
func notifyContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigs
		cancel()
		signal.Stop(sigs)
	}()
	return ctx, cancel
}

var log = logrus.WithField("component", "cmd/fleetd")
