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

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rescache/rescache/pkg/config"
	"github.com/rescache/rescache/pkg/provider"
	"github.com/rescache/rescache/pkg/server/middleware"
	"github.com/rs/zerolog/log"
)

const (
	ServerGracefulShutdownTimeout = 5 * time.Second
)

var ErrMatchingTarget = fmt.Errorf("no matching target found")

// Server is the caching reverse proxy. Incoming requests pass through
// the response caching middleware before they are forwarded to the
// matched upstream target.
type Server struct {
	cfg config.Configuration

	// proxy forwards requests to targets.
	proxy *httputil.ReverseProxy

	// handler is the proxy wrapped in the caching middleware.
	handler http.Handler

	// cache is the response caching middleware.
	cache *middleware.ResponseCache

	// storage is the provider backing the cache.
	storage provider.Provider

	// listeners holds the downstream listeners.
	listeners Listeners

	// targets holds the upstream targets.
	targets Targets

	stopCh chan bool
}

// NewServer creates a new configured server.
func NewServer(cfg config.Configuration, storage provider.Provider, reg prometheus.Registerer) (*Server, error) {
	srv := &Server{
		cfg:     cfg,
		storage: storage,
		stopCh:  make(chan bool, 1),
	}

	// Build upstream targets.
	targets, err := NewTargets(cfg.Upstreams)
	if err != nil {
		return nil, err
	}
	srv.targets = targets

	// Create the reverse proxy.
	srv.proxy = &httputil.ReverseProxy{
		Director: srv.Director,
		Transport: &http.Transport{
			// Allow self-signed upstream certificates.
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			if errors.Is(err, context.Canceled) {
				if err := context.Cause(req.Context()); errors.Is(err, ErrMatchingTarget) {
					w.WriteHeader(http.StatusBadGateway)
					_, _ = w.Write([]byte(err.Error()))
					return
				}
			}
			log.Error().Err(err).Str("request", req.URL.String()).Msg("Proxy error")
			w.WriteHeader(http.StatusBadGateway)
		},
	}

	srv.cache = middleware.New(cfg.Cache, storage, reg)
	srv.handler = srv.cache.Wrap(srv.proxy)

	// Build downstream listeners.
	listeners, err := NewListeners(cfg.Endpoints, srv)
	if err != nil {
		return nil, err
	}
	srv.listeners = listeners

	return srv, nil
}

// ServeHTTP serves a request through the caching proxy pipeline.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.handler.ServeHTTP(w, req)
}

// Storage exposes the provider backing the cache, for the admin API.
func (s *Server) Storage() provider.Provider {
	return s.storage
}

// Director matches the incoming request to a specific target and
// rewrites the request to be sent to the matched upstream server.
func (s *Server) Director(req *http.Request) {
	target, ok := s.targets.MatchTarget(req)
	if !ok {
		log.Error().Str("request", req.URL.String()).Msg("No matching target found for request")
		ctx, cancel := context.WithCancelCause(req.Context())
		*req = *req.WithContext(ctx)
		cancel(ErrMatchingTarget)
		return
	}
	upstream := target.upstream

	req.URL.Scheme = upstream.Scheme
	req.URL.Host = upstream.Host
	req.URL.Path = singleJoiningSlash(upstream.Path, req.URL.Path)
	if _, ok := req.Header["User-Agent"]; !ok {
		req.Header.Set("User-Agent", "rescache")
	}
}

// Start starts the server.
func (s *Server) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		logger := log.Ctx(ctx)
		logger.Info().Msg("Received shutdown...")
		logger.Info().Msg("Stopping server gracefully")
		s.Stop()
	}()

	log.Info().Msg("Starting server ...")

	s.listeners.Start()
}

// Await blocks until SIGTERM or Stop() is called.
func (s *Server) Await() {
	<-s.stopCh
}

// Stop stops the server.
func (s *Server) Stop() {
	defer log.Info().Msg("Server stopped")

	s.listeners.Stop()

	s.stopCh <- true
}

// Shutdown the server, gracefully. Should be deferred after Start().
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), ServerGracefulShutdownTimeout)
	defer cancel()

	go func(ctx context.Context) {
		<-ctx.Done()
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			panic("Shutdown timeout exceeded, killing rescache instance")
		}
	}(ctx)

	close(s.stopCh)
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
