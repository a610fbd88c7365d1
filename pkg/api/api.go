// MIT License
//
// Copyright (c) 2024 rescache
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rescache/rescache/pkg/config"
	"github.com/rescache/rescache/pkg/server"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// API is the admin HTTP endpoint. It exposes the cache management
// routes, Prometheus metrics, version info and optional debug routes,
// all guarded by an optional IP allow-list.
type API struct {
	cfg config.API

	router *mux.Router
	filter *IPFilter

	httpServer *http.Server
}

// New creates a new admin API.
func New(cfg config.API, reg *prometheus.Registry) (*API, error) {
	router := mux.NewRouter()
	if cfg.Path != "" {
		router = router.PathPrefix(cfg.Path).Subrouter()
	}

	a := &API{
		cfg:    cfg,
		router: router,
		filter: NewIPFilter(strings.Join(cfg.ACL, ",")),
	}

	router.Methods(http.MethodGet).Path("/metrics").Handler(
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	VersionHandler{}.Append(router)

	if cfg.Debug {
		DebugHandler{}.Append(router)
	}

	return a, nil
}

// RegisterServer registers the cache management routes of the proxy server.
func (a *API) RegisterServer(s *server.Server) {
	a.Get("/api/v1/cache/keys", s.CacheKeysHandler)
	a.Delete("/api/v1/cache/keys", s.CacheKeyDeleteHandler)
	a.Post("/api/v1/cache/purge", s.CachePurgeHandler)
}

// RegisterConfig registers the config inspection route.
func (a *API) RegisterConfig(ldr config.Loader) {
	a.Get("/api/v1/config", func(w http.ResponseWriter, _ *http.Request) {
		out, err := yaml.Marshal(ldr.Config())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(out)
	})
}

// ServeHTTP serves an admin API request.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Get registers a GET route guarded by the IP filter.
func (a *API) Get(path string, handler http.HandlerFunc) {
	a.router.Methods(http.MethodGet).Path(path).HandlerFunc(a.filter.Wrap(handler))
}

// Post registers a POST route guarded by the IP filter.
func (a *API) Post(path string, handler http.HandlerFunc) {
	a.router.Methods(http.MethodPost).Path(path).HandlerFunc(a.filter.Wrap(handler))
}

// Delete registers a DELETE route guarded by the IP filter.
func (a *API) Delete(path string, handler http.HandlerFunc) {
	a.router.Methods(http.MethodDelete).Path(path).HandlerFunc(a.filter.Wrap(handler))
}

// Run starts the admin API server. It blocks until the server stops.
func (a *API) Run() error {
	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Port),
		Handler: a,
	}
	log.Info().Int("port", a.cfg.Port).Msg("Starting API server")
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the admin API server gracefully.
func (a *API) Shutdown(ctx context.Context) {
	if a.httpServer == nil {
		return
	}
	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down API server")
	}
}
