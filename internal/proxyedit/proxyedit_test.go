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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
)

const sampleConf = `
http {
  upstream foo_web {
    server 172.28.0.2:8080;
    server 172.28.0.3:8080;
  }

  server {
    listen 443 ssl;
    server_name foo.example.com;
    ssl_certificate /etc/ssl/foo.crt;
    ssl_certificate_key /etc/ssl/foo.key;

    location / {
      proxy_pass http://foo_web;
    }

    location /old {
      return 301 /new;
    }
  }
}
`

func TestParseRecoversUpstreamsServersLocations(t *testing.T) {
	cfg, err := Parse(sampleConf)
	assert.NilError(t, err)

	assert.Equal(t, len(cfg.Upstreams), 1)
	assert.Equal(t, cfg.Upstreams[0].Name, "foo_web")
	assert.Equal(t, len(cfg.Upstreams[0].Servers), 2)
	assert.Equal(t, cfg.Upstreams[0].Servers[0], "172.28.0.2:8080")

	assert.Equal(t, len(cfg.Servers), 1)
	srv := cfg.Servers[0]
	assert.Equal(t, srv.ServerName[0], "foo.example.com")
	assert.Equal(t, srv.SSLCertificate, "/etc/ssl/foo.crt")
	assert.Equal(t, len(srv.Locations), 2)
	assert.Equal(t, srv.Locations[0].Location, "/")
	assert.Equal(t, srv.Locations[0].ProxyPass, "http://foo_web")
	assert.Equal(t, srv.Locations[1].Redirect, "301 /new")
}

func TestParseRejectsUnterminatedBlock(t *testing.T) {
	_, err := Parse(`server { listen 80;`)
	assert.ErrorContains(t, err, "unterminated")
}

type fakeController struct {
	testErr   error
	reloadErr error
	tested    bool
	reloaded  bool
}

func (f *fakeController) Test(path string) error {
	f.tested = true
	return f.testErr
}

func (f *fakeController) Reload() error {
	f.reloaded = true
	return f.reloadErr
}

func TestSaveRollsBackOnTestFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nginx.conf")
	assert.NilError(t, os.WriteFile(path, []byte("original"), 0o644))

	ctrl := &fakeController{testErr: &SaveError{Phase: "test", cause: errors.New("syntax error")}}
	err := Save(path, []byte("new content"), ctrl)

	var serr *SaveError
	assert.Assert(t, errors.As(err, &serr))
	assert.Equal(t, serr.Phase, "test")
	assert.Assert(t, !ctrl.reloaded)

	got, _ := os.ReadFile(path)
	assert.Equal(t, string(got), "original")

	matches, _ := filepath.Glob(path + ".bak.*")
	assert.Equal(t, len(matches), 0)
}

func TestSaveRollsBackOnReloadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nginx.conf")
	assert.NilError(t, os.WriteFile(path, []byte("original"), 0o644))

	ctrl := &fakeController{reloadErr: &SaveError{Phase: "reload", cause: errors.New("no such process")}}
	err := Save(path, []byte("new content"), ctrl)

	var serr *SaveError
	assert.Assert(t, errors.As(err, &serr))
	assert.Equal(t, serr.Phase, "reload")

	got, _ := os.ReadFile(path)
	assert.Equal(t, string(got), "original")
}

func TestSaveSucceedsAndRemovesBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nginx.conf")
	assert.NilError(t, os.WriteFile(path, []byte("original"), 0o644))

	ctrl := &fakeController{}
	err := Save(path, []byte("new content"), ctrl)
	assert.NilError(t, err)
	assert.Assert(t, ctrl.tested)
	assert.Assert(t, ctrl.reloaded)

	got, _ := os.ReadFile(path)
	assert.Equal(t, string(got), "new content")

	matches, _ := filepath.Glob(path + ".bak.*")
	assert.Equal(t, len(matches), 0)
}

func TestSaveWithNoExistingFileSkipsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nginx.conf")
	ctrl := &fakeController{}
	err := Save(path, []byte("new content"), ctrl)
	assert.NilError(t, err)
	got, _ := os.ReadFile(path)
	assert.Equal(t, string(got), "new content")
}
