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
	"fmt"
	"os"
	"time"
)

// SaveError carries the phase ("test" or "reload") and diagnostic
// output spec.md section 4.8's save protocol reports on failure.
type SaveError struct {
	Phase  string
	Stderr string
	cause  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("proxy config %s failed: %v", e.Phase, e.cause)
}

func (e *SaveError) Unwrap() error { return e.cause }

// Save writes content to path under the atomic-with-rollback protocol
// from spec.md section 4.8:
//  1. back up the live file if it exists
//  2. write the new content
//  3. run ctrl.Test; on failure, restore and delete the backup
//  4. run ctrl.Reload; on failure, restore and delete the backup
//  5. on success, delete the backup
func Save(path string, content []byte, ctrl Controller) error {
	var backup string
	if _, err := os.Stat(path); err == nil {
		backup = fmt.Sprintf("%s.bak.%d", path, time.Now().UnixNano())
		if err := copyFile(path, backup); err != nil {
			return fmt.Errorf("backing up live proxy config: %w", err)
		}
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		restoreAndClean(path, backup)
		return fmt.Errorf("writing proxy config: %w", err)
	}

	if err := ctrl.Test(path); err != nil {
		restoreAndClean(path, backup)
		return err
	}

	if err := ctrl.Reload(); err != nil {
		restoreAndClean(path, backup)
		return err
	}

	if backup != "" {
		os.Remove(backup)
	}
	return nil
}

func restoreAndClean(path, backup string) {
	if backup == "" {
		return
	}
	copyFile(backup, path) //nolint:errcheck
	os.Remove(backup)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
