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

// Package ptymux implements the PTY Multiplexer of spec.md section 4.7:
// one WebSocket endpoint that dispatches to an interactive shell, a log
// follow, a stop/restart with live output, or an access-log tail,
// depending on the action query parameter.
package ptymux

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/go-ps"
	"github.com/sirupsen/logrus"

	"github.com/Neuxbane/fleetd/internal/apierr"
	"github.com/Neuxbane/fleetd/internal/compose"
	"github.com/Neuxbane/fleetd/internal/lifecycle"
	"github.com/Neuxbane/fleetd/internal/mapperstore"
	"github.com/Neuxbane/fleetd/internal/termcounter"
)

const (
	idleWindow      = 60 * time.Second
	countdownTick   = 1 * time.Second
	countdownLength = 5
	killGrace       = 3 * time.Second
)

// Multiplexer holds the state shared by every session it serves.
type Multiplexer struct {
	Driver         *lifecycle.Driver
	Mapper         *mapperstore.Store
	Counter        *termcounter.Counter
	AccessLogPaths []string
	Upgrader       websocket.Upgrader
	Log            *logrus.Entry
}

func New(driver *lifecycle.Driver, mapper *mapperstore.Store, counter *termcounter.Counter, accessLogPaths []string) *Multiplexer {
	return &Multiplexer{
		Driver:         driver,
		Mapper:         mapper,
		Counter:        counter,
		AccessLogPaths: accessLogPaths,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		Log: logrus.WithField("component", "ptymux"),
	}
}

// ServeHTTP upgrades the connection and dispatches by the action query
// parameter, defaulting to exec.
func (m *Multiplexer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	file := q.Get("file")
	service := q.Get("service")
	action := q.Get("action")
	if action == "" {
		action = "exec"
	}
	ip := q.Get("ip")

	if file == "" || service == "" {
		http.Error(w, "file and service are required", http.StatusBadRequest)
		return
	}

	conn, err := m.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.Log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	p := &compose.Project{Dir: filepath.Dir(file), ManifestPath: file}
	log := m.Log.WithFields(logrus.Fields{"project": p.Dir, "service": service, "action": action})

	switch action {
	case "inspect":
		m.handleInspect(conn, p, service, log)
	case "log":
		m.handleLog(conn, p.Dir, service, ip, log)
	case "stop":
		m.handleStop(conn, p, service, log)
	case "restart":
		m.handleRestart(conn, p, service, log)
	default:
		m.handleExec(conn, p, service, log)
	}
}

// resolveIP looks up a service's first known IPv4 from the mapper, for
// the log action when the ip query parameter is omitted.
func (m *Multiplexer) resolveIP(projectDir, service string) string {
	entry, ok := m.Mapper.Current().Projects[projectDir]
	if !ok {
		return ""
	}
	svc, ok := entry.Services[service]
	if !ok {
		return ""
	}
	for _, ip := range svc.Networks {
		if ip != "" {
			return ip
		}
	}
	return ""
}

type controlFrame struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// session pumps bytes between a websocket connection and a PTY in both
// directions, per the concurrency contract in spec.md section 4.7: a
// session is single-threaded from the client's perspective, reads
// serialize into PTY writes and PTY reads serialize into socket sends.
type session struct {
	conn *websocket.Conn
	ptmx *os.File
}

func (s *session) pumpOutput(done chan<- struct{}) {
	defer close(done)
	buf := make([]byte, 4096)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			if s.conn.WriteMessage(websocket.BinaryMessage, buf[:n]) != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// pumpInput returns when the socket is closed or errors. Control frames
// (messages beginning with '{') are parsed as JSON; the only recognized
// control is a resize. Everything else is written to the PTY as-is.
func (s *session) pumpInput() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if len(data) > 0 && data[0] == '{' {
			var ctrl controlFrame
			if json.Unmarshal(data, &ctrl) == nil && ctrl.Type == "resize" {
				pty.Setsize(s.ptmx, &pty.Winsize{Rows: uint16(ctrl.Rows), Cols: uint16(ctrl.Cols)}) //nolint:errcheck
				continue
			}
		}
		if _, err := s.ptmx.Write(data); err != nil {
			return
		}
	}
}

// spawnPTY starts argv0 with args attached to a new PTY, refusing
// anything not on the driver's allowlist.
func (m *Multiplexer) spawnPTY(argv0 string, args []string) (*exec.Cmd, *os.File, error) {
	if !m.Driver.Allow.Allowed(argv0) {
		return nil, nil, apierr.New(apierr.Internal, "refusing to invoke disallowed command: "+argv0)
	}
	return spawnPTYUnchecked(argv0, args)
}

// spawnPTYScript starts a project-local helper script under a PTY.
// Authorization comes from lifecycle.ScriptPath already having
// confirmed the file lives inside the project directory and carries
// the executable bit, the same trust boundary Driver.Stop/Restart use.
func spawnPTYScript(script string, args []string) (*exec.Cmd, *os.File, error) {
	return spawnPTYUnchecked(script, args)
}

func spawnPTYUnchecked(argv0 string, args []string) (*exec.Cmd, *os.File, error) {
	cmd := exec.Command(argv0, args...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, nil, apierr.ExternalToolError(argv0, args, "", "", err)
	}
	return cmd, ptmx, nil
}

// runPTYSession pumps an already-spawned cmd's PTY (ptmx) against conn
// until either side closes, and ensures the child is gone before
// returning. When the PTY side closes (the child exited), conn is closed.
// Cancellation: closing the socket terminates the child with SIGTERM,
// then SIGKILL if it is still alive after killGrace, matching the
// cancellation contract in spec.md section 4.7.
func (m *Multiplexer) runPTYSession(conn *websocket.Conn, cmd *exec.Cmd, ptmx *os.File) {
	defer ptmx.Close()
	sess := &session{conn: conn, ptmx: ptmx}

	done := make(chan struct{})
	go sess.pumpOutput(done)
	go func() {
		<-done
		conn.Close() //nolint:errcheck // unblocks pumpInput once the PTY side has closed
	}()
	sess.pumpInput()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
	}
	terminate(cmd)
	<-done
}

// terminate asks cmd's process to exit gracefully, escalating to
// SIGKILL if it is still alive after killGrace. Liveness is checked
// with go-ps rather than blindly re-signaling an already-reaped pid.
func terminate(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	cmd.Process.Signal(syscall.SIGTERM) //nolint:errcheck
	deadline := time.Now().Add(killGrace)
	for time.Now().Before(deadline) {
		proc, err := ps.FindProcess(cmd.Process.Pid)
		if err != nil || proc == nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	cmd.Process.Kill() //nolint:errcheck
}

// runCaptured runs an allowlisted command to completion, capturing
// stdout, for the one-shot log-history fetch inspect performs before
// entering its follow loop.
func (m *Multiplexer) runCaptured(ctx context.Context, argv0 string, args []string) (string, error) {
	if !m.Driver.Allow.Allowed(argv0) {
		return "", apierr.New(apierr.Internal, "refusing to invoke disallowed command: "+argv0)
	}
	cmd := exec.CommandContext(ctx, argv0, args...)
	out, err := cmd.Output()
	if err != nil {
		return string(out), apierr.ExternalToolError(argv0, args, string(out), "", err)
	}
	return string(out), nil
}

func writeErrorAndClose(conn *websocket.Conn, err error) {
	conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`)) //nolint:errcheck
}

// watchForClose reads from conn until a read fails (the socket closed)
// and then calls cancel, so follow loops (inspect, log) can select on
// their context alongside their own timers without importing a second
// signaling mechanism.
func watchForClose(conn *websocket.Conn, cancel context.CancelFunc) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			cancel()
			return
		}
	}
}
