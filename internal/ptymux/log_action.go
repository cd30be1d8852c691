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
	"encoding/json"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Neuxbane/fleetd/internal/apierr"
)

// accessLogLineRE matches a combined-log-plus-upstream line:
//
//	remote - - [time] "method path proto" status size "referer" "ua" "upstream"
var accessLogLineRE = regexp.MustCompile(
	`^(\S+) \S+ \S+ \[([^\]]+)\] "(\S+) (\S+) [^"]*" (\d+) (\d+) "([^"]*)" "([^"]*)" "?([^"\s]+)"?`)

// LogRecord is one parsed access-log line, sent as a single JSON
// message per spec.md section 4.7's "log" action.
type LogRecord struct {
	Remote   string `json:"remote"`
	Time     string `json:"time"`
	Method   string `json:"method"`
	Path     string `json:"path"`
	Status   int    `json:"status"`
	Size     int    `json:"size"`
	Referer  string `json:"referer"`
	UA       string `json:"ua"`
	Upstream string `json:"upstream"`
}

// handleLog tails the configured access log files, forwarding lines
// whose upstream field matches ip (or, if unparseable, whose raw text
// contains ip) as one JSON message each.
func (m *Multiplexer) handleLog(conn *websocket.Conn, projectDir, service, ip string, log *logrus.Entry) {
	if ip == "" {
		ip = m.resolveIP(projectDir, service)
	}
	if ip == "" {
		writeErrorAndClose(conn, apierr.Validationf("no ip known for service %q in project %q", service, projectDir))
		return
	}
	pattern := regexp.MustCompile(regexp.QuoteMeta(ip) + `(:[0-9]+)?`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchForClose(conn, cancel)

	if len(m.AccessLogPaths) == 0 {
		writeErrorAndClose(conn, apierr.New(apierr.Internal, "no access log paths configured"))
		return
	}

	done := make(chan struct{}, len(m.AccessLogPaths))
	for _, path := range m.AccessLogPaths {
		go func(path string) {
			m.tailAccessLog(ctx, path, pattern, conn, log)
			done <- struct{}{}
		}(path)
	}
	for range m.AccessLogPaths {
		<-done
	}
}

// tailAccessLog follows path from its current end, matching new lines
// against pattern and forwarding parsed or raw records. If the file
// shrinks below the read position (truncated in place) it rewinds to the
// start; a file replaced by rename is not re-opened.
func (m *Multiplexer) tailAccessLog(ctx context.Context, path string, pattern *regexp.Regexp, conn *websocket.Conn, log *logrus.Entry) {
	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("log: cannot open access log")
		return
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return
	}
	reader := bufio.NewReader(f)

	for {
		if ctx.Err() != nil {
			return
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			if info, statErr := f.Stat(); statErr == nil {
				if cur, _ := f.Seek(0, io.SeekCurrent); cur > info.Size() {
					f.Seek(0, io.SeekStart) //nolint:errcheck
					reader.Reset(f)
				}
			}
			select {
			case <-time.After(500 * time.Millisecond):
				continue
			case <-ctx.Done():
				return
			}
		}
		line = strings.TrimRight(line, "\n")
		m.forwardMatchedLine(line, pattern, conn)
	}
}

func (m *Multiplexer) forwardMatchedLine(line string, pattern *regexp.Regexp, conn *websocket.Conn) {
	if match := accessLogLineRE.FindStringSubmatch(line); match != nil {
		upstream := match[9]
		if !pattern.MatchString(upstream) {
			return
		}
		status, _ := strconv.Atoi(match[5])
		size, _ := strconv.Atoi(match[6])
		rec := LogRecord{
			Remote:   match[1],
			Time:     match[2],
			Method:   match[3],
			Path:     match[4],
			Status:   status,
			Size:     size,
			Referer:  match[7],
			UA:       match[8],
			Upstream: upstream,
		}
		b, err := json.Marshal(rec)
		if err == nil {
			conn.WriteMessage(websocket.TextMessage, b) //nolint:errcheck
		}
		return
	}
	if pattern.MatchString(line) {
		b, _ := json.Marshal(struct {
			Raw string `json:"raw"`
		}{Raw: line})
		conn.WriteMessage(websocket.TextMessage, b) //nolint:errcheck
	}
}
