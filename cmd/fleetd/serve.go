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
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Neuxbane/fleetd/internal/config"
	"github.com/Neuxbane/fleetd/internal/httpapi"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconcile loop and serve the HTTP/WebSocket control surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*cfg, staticDir)
		},
	}
	cmd.Flags().StringVar(&staticDir, "static-dir", "", "directory of a prebuilt UI to serve at /")
	return cmd
}

func runServe(cfg config.Config, staticDir string) error {
	comps, err := build(cfg)
	if err != nil {
		return fmt.Errorf("build components: %w", err)
	}

	ctx, cancel := notifyContext()
	defer cancel()

	reconcileErrs := make(chan error, 1)
	go func() {
		reconcileErrs <- comps.Reconciler.Run(ctx)
	}()

	srv := httpapi.New(cfg, comps.Mapper, comps.Driver, comps.Status, comps.Reconciler, comps.PTY, comps.ProxyCtrl, staticDir)
	handler := httpapi.NewRouter(srv)

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.BindAddress, cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // the PTY attach endpoint streams indefinitely
	}

	serveErrs := make(chan error, 2)
	tlsServer := &http.Server{Addr: net.JoinHostPort(cfg.BindAddress, cfg.HTTPSPort), Handler: handler, ReadTimeout: httpServer.ReadTimeout}
	if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" && cfg.HTTPSPort != "" {
		go func() {
			log.WithField("addr", tlsServer.Addr).Info("listening (TLS)")
			serveErrs <- tlsServer.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		}()
	}
	go func() {
		log.WithField("addr", httpServer.Addr).Info("listening")
		serveErrs <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http server shutdown did not complete cleanly")
		}
		tlsServer.Shutdown(shutdownCtx) //nolint:errcheck
		<-reconcileErrs
		return nil
	case err := <-serveErrs:
		cancel()
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}
