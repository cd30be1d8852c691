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
	"os"
	"os/exec"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Neuxbane/fleetd/internal/compose"
	"github.com/Neuxbane/fleetd/internal/lifecycle"
	"github.com/Neuxbane/fleetd/internal/mapperstore"
	"github.com/Neuxbane/fleetd/internal/projectname"
)

// handleStop spawns the project's stop script (or the compose fallback)
// under a PTY so the caller sees live output, applying the same
// transient-state protocol as lifecycle.Driver.Stop.
func (m *Multiplexer) handleStop(conn *websocket.Conn, p *compose.Project, service string, log *logrus.Entry) {
	m.Driver.Transient.Set(p.Dir, service, lifecycle.TransientStopping)
	defer m.Driver.ScheduleStatusClear(p.Dir, service, mapperstore.StatusStopped)

	argv0, args, isScript := m.stopArgs(p, service)
	m.runScript(conn, argv0, args, isScript, log, "stop")
}

// handleRestart is the restart analogue of handleStop.
func (m *Multiplexer) handleRestart(conn *websocket.Conn, p *compose.Project, service string, log *logrus.Entry) {
	m.Driver.Transient.Set(p.Dir, service, lifecycle.TransientRestarting)
	defer m.Driver.ScheduleStatusClear(p.Dir, service, mapperstore.StatusRunning)

	argv0, args, isScript := m.restartArgs(p, service)
	m.runScript(conn, argv0, args, isScript, log, "restart")
}

func (m *Multiplexer) runScript(conn *websocket.Conn, argv0 string, args []string, isScript bool, log *logrus.Entry, verb string) {
	spawn := m.spawnPTY
	if isScript {
		spawn = func(a0 string, a []string) (*exec.Cmd, *os.File, error) { return spawnPTYScript(a0, a) }
	}
	cmd, ptmx, err := spawn(argv0, args)
	if err != nil {
		log.WithError(err).Warnf("%s: pty spawn failed", verb)
		writeErrorAndClose(conn, err)
		return
	}
	m.Counter.Inc()
	defer m.Counter.Dec()

	log.Infof("%s session started", verb)
	m.runPTYSession(conn, cmd, ptmx)
	log.Infof("%s session ended", verb)
}

func (m *Multiplexer) stopArgs(p *compose.Project, service string) (string, []string, bool) {
	if script := lifecycle.ScriptPath(p.Dir, "stop.sh"); script != "" {
		return script, []string{service}, true
	}
	return m.Driver.Allow.ComposeBin, []string{"compose", "-f", p.ManifestPath, "-p", projectname.Tail(p.Dir), "stop", service}, false
}

func (m *Multiplexer) restartArgs(p *compose.Project, service string) (string, []string, bool) {
	if script := lifecycle.ScriptPath(p.Dir, "restart.sh"); script != "" {
		return script, []string{service}, true
	}
	return m.Driver.Allow.ComposeBin, []string{"compose", "-f", p.ManifestPath, "-p", projectname.Tail(p.Dir), "restart", service}, false
}
