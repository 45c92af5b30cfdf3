/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor holds the editing session: the page being edited, its
// command history, the row orchestrator and the event bus subscriptions.
// A session is created when an editor mounts and closed when it unmounts.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"pagebuilder/internal/command"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/modules"
	"pagebuilder/internal/page"
	"pagebuilder/internal/undo"
)

// ErrClosed is returned by every mutation after Close.
var ErrClosed = errors.New("editor: session closed")

// Options configure a session.
type Options struct {
	HistoryDepth int
	DragReach    float64
	// Resolver is consulted before a module row is added. Nil skips resolution.
	Resolver modules.Resolver
	// Bus is shared with the panels around the editor; a private bus is created when nil.
	Bus *events.Bus
	// LogContext tags the session's records, e.g. with log.ContextWithSite.
	LogContext context.Context
}

// Session is one editor instance. It is driven from a single event loop;
// only module resolution in AddModule may block.
type Session struct {
	id       string
	opts     Options
	bus      *events.Bus
	hist     *undo.History
	page     *domain.PageData
	rows     *page.Rows
	resolver modules.Resolver
	unsubs   []func()
	closed   atomic.Bool
	log      *slog.Logger
	logCtx   context.Context
}

// New creates a session with an empty page.
func New(opts Options) *Session {
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus()
	}
	s := &Session{
		id:       domain.NewID(),
		opts:     opts,
		bus:      bus,
		hist:     undo.NewHistory(undo.Config{MaxDepth: opts.HistoryDepth}),
		resolver: opts.Resolver,
	}
	base := opts.LogContext
	if base == nil {
		base = context.Background()
	}
	s.logCtx = applog.ContextWithSession(base, s.id)
	s.log = applog.WithComponent("editor")
	s.attach(&domain.PageData{Sections: []*domain.Section{}})
	s.unsubs = append(s.unsubs, bus.Subscribe(events.AddElement, s.onAddElement))
	return s
}

func (s *Session) attach(p *domain.PageData) {
	s.page = p
	s.rows = page.NewRows(p, s.hist, s.bus, page.Options{Reach: s.opts.DragReach, LogContext: s.logCtx})
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Context returns ctx tagged with the session id for logging.
func (s *Session) Context(ctx context.Context) context.Context {
	return applog.ContextWithSession(ctx, s.id)
}

func (s *Session) Bus() *events.Bus       { return s.bus }
func (s *Session) History() *undo.History { return s.hist }
func (s *Session) Rows() *page.Rows       { return s.rows }
func (s *Session) Page() *domain.PageData { return s.page }
func (s *Session) Closed() bool           { return s.closed.Load() }

// Load replaces the edited page with a copy of data and clears the history.
func (s *Session) Load(data *domain.PageData) error {
	if s.closed.Load() {
		return ErrClosed
	}
	p := data.Clone()
	if p == nil {
		p = &domain.PageData{}
	}
	if p.Sections == nil {
		p.Sections = []*domain.Section{}
	}
	s.rows.CancelDrag()
	if err := s.hist.Clear(); err != nil {
		return err
	}
	s.attach(p)
	s.log.InfoContext(s.logCtx, "page loaded", "name", p.Name, "rows", len(p.Sections))
	s.bus.Publish(s.logCtx, events.Load, p)
	s.rows.Publish()
	return nil
}

// Data returns a deep copy of the page for saving. Rows without elements are left out.
func (s *Session) Data() *domain.PageData {
	out := s.page.Clone()
	kept := make([]*domain.Section, 0, len(out.Sections))
	for _, sec := range out.Sections {
		if len(sec.Elements) > 0 {
			kept = append(kept, sec)
		}
	}
	domain.Renumber(kept)
	out.Sections = kept
	return out
}

// Undo reverts the last command. It reports false when there was nothing to undo.
func (s *Session) Undo() (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	ok, err := s.hist.Undo()
	if err != nil {
		s.log.ErrorContext(s.logCtx, "undo failed", "err", err)
		return false, err
	}
	if ok {
		s.announce()
	}
	return ok, nil
}

// Redo re-applies the last undone command.
func (s *Session) Redo() (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}
	ok, err := s.hist.Redo()
	if err != nil {
		s.log.ErrorContext(s.logCtx, "redo failed", "err", err)
		return false, err
	}
	if ok {
		s.announce()
	}
	return ok, nil
}

func (s *Session) announce() {
	s.rows.Publish()
	s.bus.Publish(s.logCtx, events.FooterUpdated, s.page.Footer)
}

// UpdateFooter replaces the footer as an undoable change.
func (s *Session) UpdateFooter(f domain.Footer) error {
	if s.closed.Load() {
		return ErrClosed
	}
	before := s.page.Footer
	after := &f
	p := s.page
	cmd := command.NewSet(func(v *domain.Footer) { p.Footer = v }, before, after)
	if err := s.hist.Execute(cmd); err != nil {
		return fmt.Errorf("update footer: %w", err)
	}
	s.bus.Publish(s.logCtx, events.FooterUpdated, after)
	return nil
}

// ApplyPatch applies a settings dialog result. A row id takes the row settings
// keys (backgroundColor, backgroundImageUrl); an element id gets a properties patch.
func (s *Session) ApplyPatch(targetID string, patch map[string]any) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if sec, ok := s.rows.Section(targetID); ok {
		rs := domain.RowSettings{BackgroundColor: sec.BackgroundColor, BackgroundImageURL: sec.Image}
		if v, ok := patch["backgroundColor"].(string); ok {
			rs.BackgroundColor = v
		}
		if v, ok := patch["backgroundImageUrl"].(string); ok {
			rs.BackgroundImageURL = v
		}
		return s.rows.UpdateRowSettings(targetID, rs)
	}
	return s.rows.PatchProperties(targetID, patch)
}

// AddModule resolves cfg's module and then appends a row for it. A failed
// resolution is returned and leaves the page untouched.
func (s *Session) AddModule(ctx context.Context, cfg page.ElementConfig) (*domain.Section, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if cfg.Module == nil {
		return nil, page.ErrNoModule
	}
	if s.resolver != nil {
		if _, err := s.resolver.Resolve(ctx, *cfg.Module); err != nil {
			s.log.WarnContext(s.Context(ctx), "module resolution failed", "module", cfg.Module.Name, "err", err)
			return nil, fmt.Errorf("add module %s: %w", cfg.Module.Name, err)
		}
	}
	// the session may have been closed while resolving
	if s.closed.Load() {
		return nil, ErrClosed
	}
	return s.rows.AddModuleRow(cfg)
}

func (s *Session) onAddElement(ctx context.Context, payload any) error {
	var cfg page.ElementConfig
	switch v := payload.(type) {
	case page.ElementConfig:
		cfg = v
	case *page.ElementConfig:
		if v == nil {
			return nil
		}
		cfg = *v
	default:
		return nil
	}
	_, err := s.AddModule(ctx, cfg)
	return err
}

// Close detaches the session from the bus. Later mutations return ErrClosed.
func (s *Session) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.rows.CancelDrag()
	for _, u := range s.unsubs {
		u()
	}
	s.unsubs = nil
	s.log.DebugContext(s.logCtx, "session closed")
}
