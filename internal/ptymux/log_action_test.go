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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"gotest.tools/v3/assert"

	"github.com/Neuxbane/fleetd/internal/mapperstore"
)

// dialTestSocket spins up an httptest server that upgrades every
// request and returns a client connection to it, for exercising code
// that writes through a real *websocket.Conn.
func dialTestSocket(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	var upgrader websocket.Upgrader
	var server *websocket.Conn
	ready := make(chan struct{})
	stop := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		assert.NilError(t, err)
		server = c
		close(ready)
		<-stop
	}))
	t.Cleanup(func() {
		close(stop)
		srv.Close()
	})

	url := "ws" + srv.URL[len("http"):]
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NilError(t, err)
	<-ready
	return client, server
}

func TestForwardMatchedLineSendsParsedRecord(t *testing.T) {
	client, server := dialTestSocket(t)
	defer client.Close()

	m := &Multiplexer{}
	pattern := regexp.MustCompile(regexp.QuoteMeta("172.28.0.5"))
	line := `10.0.0.1 - - [31/Jul/2026:10:00:00 +0000] "GET /health HTTP/1.1" 200 12 "-" "curl/8.0" "172.28.0.5:8080"`
	m.forwardMatchedLine(line, pattern, server)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	assert.NilError(t, err)

	var rec LogRecord
	assert.NilError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, rec.Status, 200)
	assert.Equal(t, rec.Method, "GET")
	assert.Equal(t, rec.Path, "/health")
	assert.Equal(t, rec.Upstream, "172.28.0.5:8080")
}

func TestForwardMatchedLineSkipsNonMatchingUpstream(t *testing.T) {
	client, server := dialTestSocket(t)
	defer client.Close()

	m := &Multiplexer{}
	pattern := regexp.MustCompile(regexp.QuoteMeta("172.28.0.9"))
	line := `10.0.0.1 - - [31/Jul/2026:10:00:00 +0000] "GET /health HTTP/1.1" 200 12 "-" "curl/8.0" "172.28.0.5:8080"`
	m.forwardMatchedLine(line, pattern, server)

	client.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := client.ReadMessage()
	assert.ErrorContains(t, err, "")
}

func TestForwardMatchedLineSendsRawWhenUnparseable(t *testing.T) {
	client, server := dialTestSocket(t)
	defer client.Close()

	m := &Multiplexer{}
	pattern := regexp.MustCompile(regexp.QuoteMeta("172.28.0.5"))
	line := "garbled line mentioning 172.28.0.5 somewhere"
	m.forwardMatchedLine(line, pattern, server)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	assert.NilError(t, err)

	var raw struct {
		Raw string `json:"raw"`
	}
	assert.NilError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, raw.Raw, line)
}

func TestResolveIPReturnsFirstKnownNetwork(t *testing.T) {
	store := mapperstore.NewStore(t.TempDir() + "/mapper.json")
	mpr := mapperstore.New()
	mpr.Projects["/srv/apps/foo"] = &mapperstore.ProjectEntry{
		Services: map[string]*mapperstore.ServiceEntry{
			"web": {Name: "web", Networks: map[string]string{"appnet": "172.28.0.5"}},
		},
	}
	_, err := store.WriteIfChanged(mpr)
	assert.NilError(t, err)

	m := &Multiplexer{Mapper: store}
	assert.Equal(t, m.resolveIP("/srv/apps/foo", "web"), "172.28.0.5")
	assert.Equal(t, m.resolveIP("/srv/apps/foo", "missing"), "")
	assert.Equal(t, m.resolveIP("/srv/apps/bar", "web"), "")
}
