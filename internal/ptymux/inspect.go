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
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/buger/goterm"
	"github.com/gorilla/websocket"
	"github.com/morikuni/aec"
	"github.com/sirupsen/logrus"

	"github.com/Neuxbane/fleetd/internal/compose"
	"github.com/Neuxbane/fleetd/internal/projectname"
)

const followRespawnDelay = 3 * time.Second

// handleInspect sends recent log history, then follows the container's
// log output until the socket closes or goes idle for idleWindow, per
// spec.md section 4.7. It never writes to the container.
func (m *Multiplexer) handleInspect(conn *websocket.Conn, p *compose.Project, service string, log *logrus.Entry) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	histCtx, histCancel := context.WithTimeout(ctx, 10*time.Second)
	history, err := m.runCaptured(histCtx, m.Driver.Allow.ComposeBin, m.logsArgs(p, service, "500", 0))
	histCancel()
	if err != nil {
		log.WithError(err).Debug("inspect: history fetch failed, continuing to follow")
	}
	for _, line := range strings.Split(strings.TrimRight(history, "\n"), "\n") {
		if line == "" {
			continue
		}
		conn.WriteMessage(websocket.TextMessage, []byte(stripansi.Strip(line))) //nolint:errcheck
	}

	lines := make(chan string, 64)
	go m.followLoop(ctx, p, service, lines, log)

	sockClosed := make(chan struct{})
	go func() {
		watchForClose(conn, cancel)
		close(sockClosed)
	}()

	idleTimer := time.NewTimer(idleWindow)
	defer idleTimer.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			conn.WriteMessage(websocket.TextMessage, []byte(stripansi.Strip(line))) //nolint:errcheck
			if !idleTimer.Stop() {
				<-idleTimer.C
			}
			idleTimer.Reset(idleWindow)
		case <-idleTimer.C:
			if !m.countdown(conn, lines) {
				log.Info("inspect: idle timeout, closing")
				return
			}
			idleTimer.Reset(idleWindow)
		case <-sockClosed:
			return
		}
	}
}

// countdown shows a 5-second visible countdown. Any line arriving
// during the countdown cancels it (and is forwarded). Returns false if
// the countdown runs out without new data, meaning the caller should
// close the socket.
func (m *Multiplexer) countdown(conn *websocket.Conn, lines <-chan string) bool {
	for n := countdownLength; n >= 1; n-- {
		clear := string(aec.Column(0)) + string(aec.EraseLine(aec.EraseModes.All))
		banner := goterm.Color(fmt.Sprintf("-- idle, closing in %ds --", n), goterm.YELLOW)
		conn.WriteMessage(websocket.TextMessage, []byte(clear+banner)) //nolint:errcheck
		select {
		case line, ok := <-lines:
			if !ok {
				return false
			}
			conn.WriteMessage(websocket.TextMessage, []byte(stripansi.Strip(line))) //nolint:errcheck
			return true
		case <-time.After(countdownTick):
		}
	}
	return false
}

// followLoop spawns a log-follow child, forwards its lines, and
// respawns after followRespawnDelay on exit (typical when a container
// restarts), requesting only lines since the last one seen so history
// isn't replayed. It stops when ctx is canceled.
func (m *Multiplexer) followLoop(ctx context.Context, p *compose.Project, service string, lines chan<- string, log *logrus.Entry) {
	defer close(lines)
	var sinceUnix int64
	for {
		if ctx.Err() != nil {
			return
		}
		if err := m.followOnce(ctx, p, service, &sinceUnix, lines); err != nil {
			log.WithError(err).Debug("inspect: follow child exited")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(followRespawnDelay):
		}
	}
}

func (m *Multiplexer) followOnce(ctx context.Context, p *compose.Project, service string, sinceUnix *int64, lines chan<- string) error {
	if !m.Driver.Allow.Allowed(m.Driver.Allow.ComposeBin) {
		return nil
	}
	tail := "0"
	if *sinceUnix > 0 {
		tail = "all"
	}
	args := append(m.logsArgs(p, service, tail, *sinceUnix), "--follow")
	cmd := exec.CommandContext(ctx, m.Driver.Allow.ComposeBin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		*sinceUnix = time.Now().Unix()
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			cmd.Process.Kill() //nolint:errcheck
			return ctx.Err()
		}
	}
	return cmd.Wait()
}

// logsArgs builds a `compose logs` invocation. When sinceUnix is
// nonzero it's passed via --since to avoid replaying history on
// respawn; otherwise tail bounds the initial read.
func (m *Multiplexer) logsArgs(p *compose.Project, service, tail string, sinceUnix int64) []string {
	args := []string{"compose", "-f", p.ManifestPath, "-p", projectname.Tail(p.Dir), "logs", "--tail", tail, service}
	if sinceUnix > 0 {
		args = append(args, "--since", strconv.FormatInt(sinceUnix, 10))
	}
	return args
}
