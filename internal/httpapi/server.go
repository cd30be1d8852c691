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
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/Neuxbane/fleetd/internal/config"
	"github.com/Neuxbane/fleetd/internal/lifecycle"
	"github.com/Neuxbane/fleetd/internal/mapperstore"
	"github.com/Neuxbane/fleetd/internal/proxyedit"
	"github.com/Neuxbane/fleetd/internal/ptymux"
	"github.com/Neuxbane/fleetd/internal/reconcile"
	"github.com/Neuxbane/fleetd/internal/status"
)

// Server bundles every component the HTTP Surface wires together. It
// holds no business logic of its own beyond request parsing, auth, and
// dispatch to these collaborators, per spec.md section 2's description
// of the HTTP Surface as the thinnest of the top-level components.
type Server struct {
	Config     config.Config
	Mapper     *mapperstore.Store
	Driver     *lifecycle.Driver
	Status     *status.Aggregator
	Reconciler *reconcile.Reconciler
	PTY        *ptymux.Multiplexer
	ProxyCtrl  proxyedit.Controller
	Sessions   *SessionStore
	Limiter    *LoginLimiter
	StaticDir  string
	Log        *logrus.Entry
}

// New constructs a Server with a real clock for sessions/rate limiting.
func New(cfg config.Config, mapper *mapperstore.Store, driver *lifecycle.Driver, agg *status.Aggregator, rec *reconcile.Reconciler, pty *ptymux.Multiplexer, proxyCtrl proxyedit.Controller, staticDir string) *Server {
	clock := clockwork.NewRealClock()
	return &Server{
		Config:     cfg,
		Mapper:     mapper,
		Driver:     driver,
		Status:     agg,
		Reconciler: rec,
		PTY:        pty,
		ProxyCtrl:  proxyCtrl,
		Sessions:   NewSessionStore(clock),
		Limiter:    NewLoginLimiter(clock),
		StaticDir:  staticDir,
		Log:        logrus.WithField("component", "httpapi"),
	}
}

// NewRouter builds the full mux.Router: public routes, session-guarded
// routes, the websocket endpoint, and the static UI fallback.
func NewRouter(s *Server) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/mapper", s.handleMapper).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)

	r.HandleFunc("/api/status", s.requireSession(s.handleStatus)).Methods(http.MethodGet)
	r.HandleFunc("/api/next-ip", s.requireSession(s.handleNextIP)).Methods(http.MethodGet)

	r.HandleFunc("/api/networks", s.requireSession(s.handleNetworkList)).Methods(http.MethodGet)
	r.HandleFunc("/api/networks/create", s.requireSession(s.handleNetworkCreate)).Methods(http.MethodPost)
	r.HandleFunc("/api/networks/delete", s.requireSession(s.handleNetworkDelete)).Methods(http.MethodPost)
	r.HandleFunc("/api/networks/update", s.requireSession(s.handleNetworkUpdate)).Methods(http.MethodPost)

	r.HandleFunc("/api/apply", s.requireSession(s.handleApply)).Methods(http.MethodPost)
	r.HandleFunc("/api/add", s.requireSession(s.handleAdd)).Methods(http.MethodPost)
	r.HandleFunc("/api/rename", s.requireSession(s.handleRename)).Methods(http.MethodPost)
	r.HandleFunc("/api/delete", s.requireSession(s.handleDelete)).Methods(http.MethodPost)

	r.HandleFunc("/api/stop", s.requireSession(s.handleStop)).Methods(http.MethodPost)
	r.HandleFunc("/api/restart", s.requireSession(s.handleRestart)).Methods(http.MethodPost)
	r.HandleFunc("/api/attach", s.requireSession(s.handleAttachCheck)).Methods(http.MethodPost)

	r.HandleFunc("/api/config-files", s.requireSession(s.handleConfigFiles)).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.requireSession(s.handleConfigGet)).Methods(http.MethodGet)
	r.HandleFunc("/api/save-config", s.requireSession(s.handleConfigSave)).Methods(http.MethodPost)

	r.HandleFunc("/api/nginx", s.requireSession(s.handleNginxGet)).Methods(http.MethodGet)
	r.HandleFunc("/api/nginx/save", s.requireSession(s.handleNginxSave)).Methods(http.MethodPost)

	r.HandleFunc("/api/images/list", s.requireSession(s.handleImageList)).Methods(http.MethodGet)
	r.HandleFunc("/api/images/pull", s.requireSession(s.handleImagePull)).Methods(http.MethodPost)
	r.HandleFunc("/api/images/delete", s.requireSession(s.handleImageDelete)).Methods(http.MethodPost)

	r.HandleFunc("/ws/attach", s.handleWSAttach)

	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return s.loggingMiddleware(s.corsMiddleware(r))
}

// triggerReconcile requests an immediate out-of-band tick after a user
// operation mutates compose state, per spec.md section 4.5's "after
// writing, an immediate reconcile is triggered". It runs detached from
// the request so apply/add/rename/delete don't block on a full tick.
func (s *Server) triggerReconcile() {
	if s.Reconciler == nil {
		return
	}
	go s.Reconciler.Tick(context.Background())
}
