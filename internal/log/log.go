/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log sets up the process-wide slog logger: a console handler (or
// JSON), an optional rotating JSON file, and site/session attrs taken from the
// context of each call.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"pagebuilder/internal/version"
)

// Options controls logger initialization. FromEnv reads them from
// PB_LOG_LEVEL, PB_LOG_FORMAT (console|json), PB_LOG_FILE and PB_LOG_SOURCE.
type Options struct {
	Level     string
	Format    string
	AddSource bool
	// File enables a rotating JSON log next to the console output.
	File     string
	Rotation Rotation
	// Output receives console records; stderr when nil.
	Output io.Writer
}

// Rotation limits the log file. Zero fields take the defaults.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var defaultRotation = Rotation{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28, Compress: true}

var (
	mu      sync.RWMutex
	current *slog.Logger
	file    io.Closer
)

// L returns the process logger, configured from the environment on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	return Init(FromEnv())
}

// Init replaces the process logger (and slog.Default) and returns it. A log
// file opened by an earlier Init is closed.
func Init(opts Options) *slog.Logger {
	level := parseLevel(opts.Level)
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource})
	} else {
		console = newConsoleHandler(out, level, opts.AddSource)
	}
	handlers := []slog.Handler{console}

	var rotated *lj.Logger
	if path := strings.TrimSpace(opts.File); path != "" {
		rotated = newRotatingFile(path, opts.Rotation)
		handlers = append(handlers, slog.NewJSONHandler(rotated, &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}))
	}

	var h slog.Handler = handlers[0]
	if len(handlers) > 1 {
		h = fanout(handlers)
	}
	logger := slog.New(contextHandler{next: h}).With(
		slog.String("app", "pagebuilder"),
		slog.String("ver", version.Version),
	)

	mu.Lock()
	prev := file
	current = logger
	file = nil
	if rotated != nil {
		file = rotated
	}
	mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	slog.SetDefault(logger)
	return logger
}

func newRotatingFile(path string, r Rotation) *lj.Logger {
	if r.MaxSizeMB <= 0 {
		r.MaxSizeMB = defaultRotation.MaxSizeMB
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = defaultRotation.MaxBackups
	}
	if r.MaxAgeDays <= 0 {
		r.MaxAgeDays = defaultRotation.MaxAgeDays
	}
	return &lj.Logger{Filename: path, MaxSize: r.MaxSizeMB, MaxBackups: r.MaxBackups, MaxAge: r.MaxAgeDays, Compress: r.Compress}
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	f := file
	file = nil
	mu.Unlock()
	if f == nil {
		return nil
	}
	return f.Close()
}

// FromEnv builds Options from the PB_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("PB_LOG_LEVEL", "info"),
		Format:    getenv("PB_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("PB_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("PB_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns the process logger with a component attr.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation adds an op attr to l.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type (
	siteKey    struct{}
	sessionKey struct{}
)

// ContextWithSite tags ctx with a site folder. Records logged with ctx
// (InfoContext and friends) carry it as the site attr.
func ContextWithSite(ctx context.Context, root string) context.Context {
	return context.WithValue(ctx, siteKey{}, root)
}

// ContextWithSession tags ctx with an editor session id (the session attr).
func ContextWithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SiteFrom returns the site folder ctx was tagged with.
func SiteFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(siteKey{}).(string)
	return s
}

// SessionFrom returns the session id ctx was tagged with.
func SessionFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(sessionKey{}).(string)
	return s
}

// contextHandler copies the site and session tags of the call's context onto the record.
type contextHandler struct{ next slog.Handler }

func (h contextHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if site := SiteFrom(ctx); site != "" {
		r.AddAttrs(slog.String("site", site))
	}
	if sid := SessionFrom(ctx); sid != "" {
		r.AddAttrs(slog.String("session", sid))
	}
	return h.next.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(as []slog.Attr) slog.Handler {
	return contextHandler{next: h.next.WithAttrs(as)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{next: h.next.WithGroup(name)}
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(as []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(as)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
