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

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/Neuxbane/fleetd/internal/config"
	"github.com/Neuxbane/fleetd/internal/mapperstore"
	"github.com/Neuxbane/fleetd/internal/status"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	workspace := t.TempDir()

	store := mapperstore.NewStore(filepath.Join(workspace, "mapper.json"))
	m := mapperstore.New()
	m.Projects[filepath.Join(workspace, "apps", "foo")] = &mapperstore.ProjectEntry{
		Services: map[string]*mapperstore.ServiceEntry{},
	}
	_, err := store.WriteIfChanged(m)
	assert.NilError(t, err)

	agg := status.New(store,
		func(ctx context.Context, projectDir string, names []string) (map[string]mapperstore.Status, error) {
			return map[string]mapperstore.Status{}, nil
		},
		func(projectDir string) map[string]string { return map[string]string{} },
	)

	s := &Server{
		Config:   config.Config{Workspace: workspace, AdminPassword: "secret"},
		Mapper:   store,
		Status:   agg,
		Sessions: NewSessionStore(nil),
		Limiter:  NewLoginLimiter(nil),
	}
	return s, workspace
}

func TestHandleDeleteRejectsTemplateProject(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(deleteRequest{Path: "template", ConfirmName: "template"})
	req := httptest.NewRequest(http.MethodPost, "/api/delete", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleDelete(rec, req)

	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestHandleRenameRejectsTemplateProject(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(renameRequest{Path: "template", NewName: "renamed"})
	req := httptest.NewRequest(http.MethodPost, "/api/rename", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	s.handleRename(rec, req)

	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestRequireSessionRejectsMissingToken(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status?path=apps/foo", nil)
	rec := httptest.NewRecorder()

	s.requireSession(s.handleStatus)(rec, req)

	assert.Equal(t, rec.Code, http.StatusUnauthorized)
}

func TestLoginThenAccessProtectedEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	loginBody, _ := json.Marshal(loginRequest{Password: "secret"})
	loginReq := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(loginBody))
	loginReq.RemoteAddr = "10.0.0.1:5555"
	loginRec := httptest.NewRecorder()
	s.handleLogin(loginRec, loginReq)
	assert.Equal(t, loginRec.Code, http.StatusOK)

	var loginResp map[string]string
	assert.NilError(t, json.Unmarshal(loginRec.Body.Bytes(), &loginResp))
	token := loginResp["token"]
	assert.Assert(t, token != "")

	statusReq := httptest.NewRequest(http.MethodGet, "/api/status?path=apps/foo", nil)
	statusReq.RemoteAddr = "10.0.0.1:6666"
	statusReq.Header.Set("Authorization", "Bearer "+token)
	statusRec := httptest.NewRecorder()
	s.requireSession(s.handleStatus)(statusRec, statusReq)

	assert.Equal(t, statusRec.Code, http.StatusOK)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(loginRequest{Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/api/login", bytes.NewReader(body))
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()

	s.handleLogin(rec, req)

	assert.Equal(t, rec.Code, http.StatusUnauthorized)
}
