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

	"github.com/spf13/cobra"

	"github.com/Neuxbane/fleetd/internal/config"
)

// newReconcileCmd runs a single reconcile pass and exits, for cron-style
// invocation or manual troubleshooting without standing up the HTTP
// surface.
func newReconcileCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run a single reconcile tick and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, err := build(*cfg)
			if err != nil {
				return fmt.Errorf("build components: %w", err)
			}
			res := comps.Reconciler.Tick(context.Background())
			if res.Skipped {
				log.Info("tick skipped: active PTY session or another tick in flight")
				return nil
			}
			log.WithField("projects", res.ProjectsSeen).
				WithField("manifest_writes", res.ManifestWrites).
				WithField("mapper_changed", res.MapperChanged).
				Info("reconcile tick complete")
			if res.Errs != nil {
				return res.Errs
			}
			return nil
		},
	}
}
