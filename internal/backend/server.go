/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"pagebuilder/internal/domain"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/storage"
	"pagebuilder/internal/version"
)

// maxPageBody bounds an uploaded page document.
const maxPageBody = 8 << 20

// Config holds server configuration.
type Config struct {
	Addr   string // http bind address, e.g., ":8080"
	Secret string // HMAC secret for bearer tokens
}

// ConfigFromEnv fills missing fields from PB_AUTH_SECRET and PORT.
func ConfigFromEnv(cfg Config) Config {
	if cfg.Secret == "" {
		cfg.Secret = os.Getenv("PB_AUTH_SECRET")
	}
	if v := os.Getenv("PORT"); v != "" && cfg.Addr == "" {
		cfg.Addr = ":" + v
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return cfg
}

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes a Store over HTTP.
type Server struct {
	store  Store
	secret string
	log    *slog.Logger
}

// NewServer creates a server. An empty secret falls back to an insecure development secret.
func NewServer(store Store, secret string) *Server {
	l := applog.WithComponent("backend")
	if secret == "" {
		secret = "dev-secret-change-me"
		l.Warn("PB_AUTH_SECRET not set; using insecure dev secret")
	}
	return &Server{store: store, secret: secret, log: l}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", s.ready)
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})
	mux.HandleFunc("POST /api/auth/token", s.token)
	mux.HandleFunc("GET /api/pages", withAuth(s.secret, s.listPages))
	mux.HandleFunc("GET /api/pages/{name}", withAuth(s.secret, s.getPage))
	mux.HandleFunc("PUT /api/pages/{name}", withAuth(s.secret, s.putPage))
	return mux
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.store.(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// POST /api/auth/token → { token, expires_at }
func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	// Optional JSON body: { "subject": "name", "ttl_seconds": 3600 }
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "dev"
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := signToken(s.secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) listPages(w http.ResponseWriter, r *http.Request, _ string) {
	list, err := s.store.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if list == nil {
		list = []PageInfo{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getPage(w http.ResponseWriter, r *http.Request, _ string) {
	sp, err := s.store.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// putRequest is the body of PUT /api/pages/{name}.
type putRequest struct {
	Version int64           `json:"version"`
	Page    json.RawMessage `json:"page"`
}

func (s *Server) putPage(w http.ResponseWriter, r *http.Request, sub string) {
	name := strings.TrimSpace(r.PathValue("name"))
	var req putRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPageBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if err := storage.Validate(req.Page); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	var p domain.PageData
	if err := json.Unmarshal(req.Page, &p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	v, err := s.store.Put(r.Context(), name, &p, req.Version)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.log.Info("page stored", slog.String("name", name), slog.Int64("version", v), slog.String("sub", sub))
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "version": v})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusConflict, err)
	default:
		s.log.Error("request failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, err)
	}
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", slog.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
