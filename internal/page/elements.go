/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package page

import (
	"encoding/json"
	"fmt"

	"pagebuilder/internal/command"
	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
	"pagebuilder/internal/undo"
)

// ElementConfig is the payload of an add-element request from the module sidebar.
type ElementConfig struct {
	Type   domain.ElementType `json:"type"`
	Module *domain.ModuleRef  `json:"module"`
}

// Modules that need a wallet connection get a half-width block with defaults.
var walletModules = map[string]bool{
	"scom-nft-minter": true,
	"scom-gem-token":  true,
}

// NewModuleElement builds the element placed for cfg in a fresh row.
func NewModuleElement(cfg ElementConfig) (*domain.Element, error) {
	if cfg.Module == nil {
		return nil, ErrNoModule
	}
	typ := cfg.Type
	if typ == "" {
		typ = domain.ElementPrimitive
	}
	mod := *cfg.Module
	el := &domain.Element{
		ID:         domain.NewID(),
		Column:     1,
		ColumnSpan: 3,
		Type:       typ,
		Module:     &mod,
		Properties: map[string]any{},
	}
	if mod.Category.Is("components") {
		el.ColumnSpan = domain.MaxColumns
	}
	if walletModules[mod.Path] {
		el.ColumnSpan = 6
		el.Properties = map[string]any{
			"networks": []any{map[string]any{"chainId": 43113}},
			"wallets":  []any{map[string]any{"name": "metamask"}},
			"width":    "100%",
		}
	}
	return el, nil
}

// AddModuleRow appends a new row holding a single element for cfg.
func (r *Rows) AddModuleRow(cfg ElementConfig) (*domain.Section, error) {
	el, err := NewModuleElement(cfg)
	if err != nil {
		return nil, err
	}
	return r.AppendRow(&domain.Section{ID: domain.NewID(), Elements: []*domain.Element{el}})
}

func elementList(list *[]*domain.Element) command.List[*domain.Element] {
	return command.SliceList(list, nil)
}

// AddElement inserts el into the row at index (-1 appends). A zero Column is
// placed at the first gap wide enough for its span.
func (r *Rows) AddElement(sectionID string, el *domain.Element, index int) error {
	s, ok := r.Section(sectionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}
	if el.ID == "" {
		el.ID = domain.NewID()
	}
	if el.ColumnSpan == 0 {
		el.ColumnSpan = 1
	}
	if el.Column == 0 {
		col, ok := domain.FreeColumn(s.Elements, el.ColumnSpan)
		if !ok {
			return fmt.Errorf("add element: %w", domain.ErrRowFull)
		}
		el.Column = col
	}
	if err := domain.ValidateRow(append(append([]*domain.Element(nil), s.Elements...), el)); err != nil {
		return fmt.Errorf("add element: %w", err)
	}
	return r.run("add-element", command.NewAdd(elementList(&s.Elements), el, index))
}

// DeleteElement removes an element wherever it is nested.
func (r *Rows) DeleteElement(id string) error {
	loc, ok := r.page.FindElement(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	rm, err := command.NewRemove(elementList(loc.Siblings), id)
	if err != nil {
		return err
	}
	return r.run("delete-element", rm)
}

// MoveElement moves a top-level element to an insertion slot of another (or
// the same) row. Within a row the columns are repacked in the new order. Into
// another row the element takes the gap between the slot's neighbours, or the
// row is repacked in slot order when that gap is too narrow; the move is
// refused when the row's spans would exceed the grid.
func (r *Rows) MoveElement(id, toSectionID string, slot int) error {
	cmd, err := r.moveElementCmd(id, toSectionID, slot)
	if err != nil {
		return err
	}
	if cmd == nil {
		return nil
	}
	return r.run("move-element", cmd)
}

func (r *Rows) moveElementCmd(id, toSectionID string, slot int) (undo.Command, error) {
	loc, ok := r.page.FindElement(id)
	if !ok || loc.Parent != nil {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	dst, ok := r.Section(toSectionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, toSectionID)
	}
	if slot < 0 || slot > len(dst.Elements) {
		slot = len(dst.Elements)
	}
	from := elementList(&loc.Section.Elements)
	to := elementList(&dst.Elements)
	m, err := command.NewMoveToSlot(from, loc.Index, to, slot)
	if err != nil {
		return nil, err
	}
	el := loc.Element
	if dst == loc.Section {
		if m.NoOp() {
			return nil, nil
		}
		order := append([]*domain.Element(nil), dst.Elements...)
		order = append(order[:loc.Index], order[loc.Index+1:]...)
		order = append(order[:m.ToIndex()], append([]*domain.Element{el}, order[m.ToIndex():]...)...)
		return command.NewGroup("move-element", m, relayout(order)), nil
	}
	if !hasRoom(dst.Elements, el.ColumnSpan) {
		return nil, fmt.Errorf("move element: %w", domain.ErrRowFull)
	}
	if col, ok := slotColumn(dst.Elements, slot, el.ColumnSpan); ok {
		setCol := command.NewSet(func(c int) { el.Column = c }, el.Column, col)
		return command.NewGroup("move-element", m, setCol), nil
	}
	// no gap between the slot's neighbours: repack the row in slot order
	order := make([]*domain.Element, 0, len(dst.Elements)+1)
	order = append(order, dst.Elements[:slot]...)
	order = append(order, el)
	order = append(order, dst.Elements[slot:]...)
	return command.NewGroup("move-element", m, relayout(order)), nil
}

// hasRoom reports whether a row can take another span columns.
func hasRoom(row []*domain.Element, span int) bool {
	return domain.UsedColumns(row)+span <= domain.MaxColumns
}

// slotColumn picks the column for a block inserted at slot so the row's
// array order stays its column order: the gap between the element before the
// slot and the one after it. ok is false when that gap is too narrow.
func slotColumn(row []*domain.Element, slot, span int) (int, bool) {
	lo, hi := 1, domain.MaxColumns+1
	if slot > 0 {
		prev := row[slot-1]
		lo = prev.Column + prev.ColumnSpan
	}
	if slot < len(row) {
		hi = row[slot].Column
	}
	if hi-lo < span {
		return 0, false
	}
	trial := append(append([]*domain.Element(nil), row...), &domain.Element{Column: lo, ColumnSpan: span})
	if domain.ValidateRow(trial) != nil {
		return 0, false
	}
	return lo, true
}

// relayout packs elements left to right in the given order keeping their spans.
func relayout(order []*domain.Element) undo.Command {
	before := make([]int, len(order))
	after := make([]int, len(order))
	next := 1
	for i, e := range order {
		before[i] = e.Column
		after[i] = next
		next += e.ColumnSpan
	}
	return command.NewSet(func(cols []int) {
		for i, e := range order {
			e.Column = cols[i]
		}
	}, before, after)
}

// SetElementLayout changes column and span of an element after checking the row grid.
func (r *Rows) SetElementLayout(id string, column, span int) error {
	loc, ok := r.page.FindElement(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	el := loc.Element
	trial := make([]*domain.Element, 0, len(*loc.Siblings))
	for _, e := range *loc.Siblings {
		if e == el {
			e = &domain.Element{ID: el.ID, Column: column, ColumnSpan: span}
		}
		trial = append(trial, e)
	}
	if err := domain.ValidateRow(trial); err != nil {
		return fmt.Errorf("set layout: %w", err)
	}
	type layout struct{ column, span int }
	apply := func(l layout) { el.Column, el.ColumnSpan = l.column, l.span }
	return r.run("set-layout", command.NewSet(apply, layout{el.Column, el.ColumnSpan}, layout{column, span}))
}

// elementSizer stores the declared size in the element's width/height
// properties. The values found when the resize started are kept as they were
// decoded, so setting the initial size again restores them exactly.
type elementSizer struct {
	el      *domain.Element
	initial domain.Size
	raw     map[string]any // width/height as found; a missing key was absent
	hadMap  bool
}

func newElementSizer(el *domain.Element) *elementSizer {
	s := &elementSizer{el: el, initial: SizeOf(el), raw: map[string]any{}, hadMap: el.Properties != nil}
	for _, key := range []string{"width", "height"} {
		if v, ok := el.Properties[key]; ok {
			s.raw[key] = v
		}
	}
	return s
}

func (s *elementSizer) SetSize(sz domain.Size) {
	if s.el.Properties == nil {
		s.el.Properties = map[string]any{}
	}
	setDim := func(key string, d, initial domain.Dimension) {
		if d == initial {
			if v, ok := s.raw[key]; ok {
				s.el.Properties[key] = v
			} else {
				delete(s.el.Properties, key)
			}
			return
		}
		if d == "" {
			delete(s.el.Properties, key)
			return
		}
		s.el.Properties[key] = string(d)
	}
	setDim("width", sz.Width, s.initial.Width)
	setDim("height", sz.Height, s.initial.Height)
	if !s.hadMap && len(s.el.Properties) == 0 {
		s.el.Properties = nil
	}
}

// SizeOf reads the declared size of an element. Numbers are formatted
// without a unit; the stored value itself is never rewritten by a read.
func SizeOf(el *domain.Element) domain.Size {
	dim := func(key string) domain.Dimension {
		switch v := el.Properties[key].(type) {
		case string:
			return domain.Dimension(v)
		case float64, int, int64, json.Number:
			return domain.Dimension(fmt.Sprint(v))
		}
		return ""
	}
	return domain.Size{Width: dim("width"), Height: dim("height")}
}

// ResizeElement sets the declared width/height of an element.
func (r *Rows) ResizeElement(id string, size domain.Size) error {
	loc, ok := r.page.FindElement(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	sizer := newElementSizer(loc.Element)
	if sizer.initial == size {
		return nil
	}
	if err := r.run("resize", command.NewResize(sizer, sizer.initial, size)); err != nil {
		return err
	}
	r.bus.Publish(r.ctx, events.Resize, loc.Element)
	return nil
}

// PatchProperties merges patch into the element's properties. A nil value removes the key.
func (r *Rows) PatchProperties(id string, patch map[string]any) error {
	loc, ok := r.page.FindElement(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	el := loc.Element
	before := domain.CopyProperties(el.Properties)
	after := domain.CopyProperties(el.Properties)
	if after == nil {
		after = map[string]any{}
	}
	for k, v := range patch {
		if v == nil {
			delete(after, k)
			continue
		}
		after[k] = v
	}
	apply := func(m map[string]any) { el.Properties = domain.CopyProperties(m) }
	if err := r.run("patch-properties", command.NewSet(apply, before, after)); err != nil {
		return err
	}
	r.bus.Publish(r.ctx, events.ConfigChange, el)
	return nil
}
