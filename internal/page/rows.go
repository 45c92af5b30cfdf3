/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package page orchestrates the ordered rows of a page and the elements inside
// them. Every structural change is built as a command and executed through the
// session history; row numbers are re-derived after each splice.
package page

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pagebuilder/internal/command"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/drag"
	"pagebuilder/internal/events"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/undo"
)

var (
	ErrSectionNotFound = errors.New("page: section not found")
	ErrElementNotFound = errors.New("page: element not found")
	ErrNoModule        = errors.New("page: element config without module")
)

// Options tune the orchestrator.
type Options struct {
	// Reach is how far (view px) a pointer may be outside a row or element and still hover it.
	Reach float64
	// LogContext carries the site/session tags for records and events of this page.
	LogContext context.Context
}

// Rows owns the section collection of one page.
type Rows struct {
	page     *domain.PageData
	sections command.List[*domain.Section]
	hist     *undo.History
	bus      *events.Bus
	opts     Options
	log      *slog.Logger
	ctx      context.Context

	rowDrag  *drag.Controller
	elemDrag *drag.Controller
}

// NewRows wires the orchestrator to p. p.Sections is renumbered immediately.
func NewRows(p *domain.PageData, h *undo.History, bus *events.Bus, opts Options) *Rows {
	if p == nil || h == nil {
		panic("page: NewRows needs a page and a history")
	}
	if bus == nil {
		bus = events.NewBus()
	}
	ctx := opts.LogContext
	if ctx == nil {
		ctx = context.Background()
	}
	r := &Rows{page: p, hist: h, bus: bus, opts: opts, log: applog.WithComponent("page"), ctx: ctx}
	r.sections = command.SliceList(&p.Sections, r.renumber)
	r.renumber()
	r.rowDrag = drag.New(drag.Options{
		Axis:  drag.Vertical,
		Reach: opts.Reach,
		Exec:  h,
		Build: r.buildRowDrop,
	})
	r.elemDrag = drag.New(drag.Options{
		Axis:     drag.Horizontal,
		Reach:    opts.Reach,
		Exec:     h,
		Validate: r.canDropElement,
		Build:    r.buildElementDrop,
	})
	return r
}

func (r *Rows) renumber() { domain.Renumber(r.page.Sections) }

// Sections returns the live section slice. Callers must not mutate it.
func (r *Rows) Sections() []*domain.Section { return r.page.Sections }

// Len returns the number of rows.
func (r *Rows) Len() int { return r.sections.Len() }

// Section looks a row up by id.
func (r *Rows) Section(id string) (*domain.Section, bool) {
	s, _ := r.page.FindSection(id)
	return s, s != nil
}

func (r *Rows) indexOf(id string) (int, error) {
	_, i := r.page.FindSection(id)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", ErrSectionNotFound, id)
	}
	return i, nil
}

// run executes cmd through the history and announces the new layout.
func (r *Rows) run(op string, cmd undo.Command) error {
	if err := r.hist.Execute(cmd); err != nil {
		applog.WithOperation(r.log, op).ErrorContext(r.ctx, "command aborted", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	r.log.DebugContext(r.ctx, "command applied", "op", op, "rows", r.sections.Len())
	r.Publish()
	return nil
}

// Publish announces the current sections on the bus.
func (r *Rows) Publish() {
	r.bus.Publish(r.ctx, events.SectionsUpdated, r.page.Sections)
}

// AppendRow adds s as the last row. Missing ids are generated and the
// elements must satisfy the column grid.
func (r *Rows) AppendRow(s *domain.Section) (*domain.Section, error) {
	if s == nil {
		s = &domain.Section{}
	}
	if s.ID == "" {
		s.ID = domain.NewID()
	}
	for _, e := range s.Elements {
		if e.ID == "" {
			e.ID = domain.NewID()
		}
	}
	if err := domain.ValidateRow(s.Elements); err != nil {
		return nil, fmt.Errorf("append row: %w", err)
	}
	if err := r.run("append-row", command.NewAdd(r.sections, s, -1)); err != nil {
		return nil, err
	}
	return s, nil
}

// InsertRow adds s at index (clamped to the row count).
func (r *Rows) InsertRow(s *domain.Section, index int) (*domain.Section, error) {
	if s == nil || s.ID == "" {
		return nil, errors.New("insert row: section needs an id")
	}
	if err := domain.ValidateRow(s.Elements); err != nil {
		return nil, fmt.Errorf("insert row: %w", err)
	}
	if err := r.run("insert-row", command.NewAdd(r.sections, s, index)); err != nil {
		return nil, err
	}
	return s, nil
}

// CloneRow deep-copies a row with fresh ids and inserts the copy right after it.
func (r *Rows) CloneRow(id string) (*domain.Section, error) {
	i, err := r.indexOf(id)
	if err != nil {
		return nil, err
	}
	clone := r.sections.At(i).Clone(domain.FreshID)
	if err := r.run("clone-row", command.NewAdd(r.sections, clone, i+1)); err != nil {
		return nil, err
	}
	r.bus.Publish(r.ctx, events.Clone, clone)
	return clone, nil
}

// MoveRowUp swaps the row with its predecessor. It reports false at the top.
func (r *Rows) MoveRowUp(id string) (bool, error) { return r.shift(id, -1) }

// MoveRowDown swaps the row with its successor. It reports false at the bottom.
func (r *Rows) MoveRowDown(id string) (bool, error) { return r.shift(id, +1) }

func (r *Rows) shift(id string, delta int) (bool, error) {
	i, err := r.indexOf(id)
	if err != nil {
		return false, err
	}
	to := i + delta
	if to < 0 || to >= r.sections.Len() {
		return false, nil
	}
	m, err := command.NewMove(r.sections, i, r.sections, to)
	if err != nil {
		return false, err
	}
	if err := r.run("move-row", m); err != nil {
		return false, err
	}
	return true, nil
}

// MoveRow moves a row to an insertion slot counted on the current order
// (slot i = before the row now at i). Moving onto its own slot is a no-op.
func (r *Rows) MoveRow(id string, slot int) (bool, error) {
	i, err := r.indexOf(id)
	if err != nil {
		return false, err
	}
	if slot < 0 {
		slot = 0
	}
	if slot > r.sections.Len() {
		slot = r.sections.Len()
	}
	m, err := command.NewMoveToSlot(r.sections, i, r.sections, slot)
	if err != nil {
		return false, err
	}
	if m.NoOp() {
		return false, nil
	}
	if err := r.run("move-row", m); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteRow removes a row; undo restores it at its index with its content.
func (r *Rows) DeleteRow(id string) error {
	rm, err := command.NewRemove(r.sections, id)
	if err != nil {
		return fmt.Errorf("delete row: %w", ErrSectionNotFound)
	}
	return r.run("delete-row", rm)
}

// UpdateRowSettings applies the row settings dialog result.
func (r *Rows) UpdateRowSettings(id string, rs domain.RowSettings) error {
	s, ok := r.Section(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, id)
	}
	before := domain.RowSettings{BackgroundColor: s.BackgroundColor, BackgroundImageURL: s.Image}
	if before == rs {
		return nil
	}
	apply := func(v domain.RowSettings) {
		s.BackgroundColor = v.BackgroundColor
		s.Image = v.BackgroundImageURL
	}
	return r.run("row-settings", command.NewSet(apply, before, rs))
}
