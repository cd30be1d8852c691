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

package ptymux

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Neuxbane/fleetd/internal/apierr"
	"github.com/Neuxbane/fleetd/internal/compose"
)

// preferredShells is tried in order; compose exec fails fast if a shell
// binary doesn't exist in the target image, so the first one that
// survives past shellProbe is used.
var preferredShells = []string{"bash", "sh"}

const shellProbe = 300 * time.Millisecond

// handleExec resolves the service's container id and spawns an
// interactive shell inside it under a PTY, per spec.md section 4.7.
// ActiveTerminalCounter is incremented for the session's lifetime and
// decremented exactly once, guarded by a sync.Once.
func (m *Multiplexer) handleExec(conn *websocket.Conn, p *compose.Project, service string, log *logrus.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	id, err := m.Driver.ContainerID(ctx, p, service)
	cancel()
	if err != nil {
		log.WithError(err).Warn("exec: container lookup failed")
		writeErrorAndClose(conn, err)
		return
	}

	cmd, ptmx, err := m.spawnShell(id)
	if err != nil {
		log.WithError(err).Warn("exec: pty spawn failed")
		writeErrorAndClose(conn, err)
		return
	}

	m.Counter.Inc()
	var once sync.Once
	defer once.Do(m.Counter.Dec)

	log.Info("exec session started")
	m.runPTYSession(conn, cmd, ptmx)
	log.Info("exec session ended")
}

// spawnShell tries each of preferredShells in turn inside the
// container, keeping the first one that's still running after
// shellProbe (a shell that doesn't exist makes compose exec return
// immediately with a non-zero exit).
func (m *Multiplexer) spawnShell(containerID string) (*exec.Cmd, *os.File, error) {
	var lastErr error
	for _, shell := range preferredShells {
		cmd, ptmx, err := m.spawnPTY(m.Driver.Allow.ComposeBin, []string{"exec", "-i", containerID, shell})
		if err != nil {
			lastErr = err
			continue
		}
		if shellSurvived(cmd) {
			return cmd, ptmx, nil
		}
		ptmx.Close()
		lastErr = apierr.New(apierr.ExternalTool, shell+": exited immediately")
	}
	return nil, nil, lastErr
}

func shellSurvived(cmd *exec.Cmd) bool {
	exited := make(chan struct{})
	go func() {
		cmd.Wait() //nolint:errcheck
		close(exited)
	}()
	select {
	case <-exited:
		return false
	case <-time.After(shellProbe):
		return true
	}
}
