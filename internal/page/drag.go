/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package page

import (
	"fmt"

	"pagebuilder/internal/command"
	"pagebuilder/internal/drag"
	"pagebuilder/internal/geom"
	"pagebuilder/internal/undo"
)

// rootParent is the parent key of rows in drag slots.
const rootParent = ""

// Layout is the rendered geometry the view reports when a gesture starts.
// Rows and Elements are keyed by id; entries missing from the maps are not drop candidates.
type Layout struct {
	Rows     map[string]geom.Rect
	Elements map[string]geom.Rect
}

func (r *Rows) dragActive() bool {
	return r.rowDrag.Session() != nil || r.elemDrag.Session() != nil
}

// active returns the controller of the running gesture, or nil.
func (r *Rows) active() *drag.Controller {
	switch {
	case r.rowDrag.Session() != nil:
		return r.rowDrag
	case r.elemDrag.Session() != nil:
		return r.elemDrag
	}
	return nil
}

// BeginRowDrag starts dragging the row id with the pointer at p.
func (r *Rows) BeginRowDrag(id string, p geom.Pt, layout Layout) error {
	if r.dragActive() {
		return drag.ErrActive
	}
	i, err := r.indexOf(id)
	if err != nil {
		return err
	}
	var cands []drag.Candidate
	for j, s := range r.page.Sections {
		b, ok := layout.Rows[s.ID]
		if !ok {
			continue
		}
		cands = append(cands, drag.Candidate{Key: s.ID, Parent: rootParent, Index: j, Bounds: b})
	}
	t := drag.Target{Key: id, Parent: rootParent, Index: i, Bounds: layout.Rows[id]}
	return r.rowDrag.Begin(t, p, cands)
}

// BeginElementDrag starts dragging a top-level element. Empty rows become
// fill candidates so an element can be dropped into them.
func (r *Rows) BeginElementDrag(id string, p geom.Pt, layout Layout) error {
	if r.dragActive() {
		return drag.ErrActive
	}
	loc, ok := r.page.FindElement(id)
	if !ok || loc.Parent != nil {
		return fmt.Errorf("%w: %s", ErrElementNotFound, id)
	}
	var cands []drag.Candidate
	for _, s := range r.page.Sections {
		if len(s.Elements) == 0 {
			if b, ok := layout.Rows[s.ID]; ok {
				cands = append(cands, drag.Candidate{Parent: s.ID, Index: 0, Bounds: b, Fill: true})
			}
			continue
		}
		for j, e := range s.Elements {
			if b, ok := layout.Elements[e.ID]; ok {
				cands = append(cands, drag.Candidate{Key: e.ID, Parent: s.ID, Index: j, Bounds: b})
			}
		}
	}
	t := drag.Target{Key: id, Parent: loc.Section.ID, Index: loc.Index, Bounds: layout.Elements[id]}
	return r.elemDrag.Begin(t, p, cands)
}

// DragTo feeds a pointer move into the running gesture.
func (r *Rows) DragTo(p geom.Pt) (drag.Slot, bool) {
	c := r.active()
	if c == nil {
		return drag.Slot{}, false
	}
	return c.Move(p)
}

// DragView returns the ghost/marker feedback of the running gesture.
func (r *Rows) DragView() drag.View {
	if c := r.active(); c != nil {
		return c.View()
	}
	return drag.View{}
}

// Drop releases the running gesture at p.
func (r *Rows) Drop(p geom.Pt) (drag.Result, error) {
	c := r.active()
	if c == nil {
		return drag.Result{}, drag.ErrNotDragging
	}
	res, err := c.Release(p)
	if err != nil {
		return res, err
	}
	if res.Command != nil {
		r.Publish()
	}
	return res, nil
}

// CancelDrag aborts the running gesture, if any.
func (r *Rows) CancelDrag() {
	if c := r.active(); c != nil {
		c.Cancel()
	}
}

func (r *Rows) buildRowDrop(t drag.Target, s drag.Slot) (undo.Command, error) {
	return command.NewMoveToSlot(r.sections, t.Index, r.sections, s.Index)
}

func (r *Rows) buildElementDrop(t drag.Target, s drag.Slot) (undo.Command, error) {
	cmd, err := r.moveElementCmd(t.Key, s.Parent, s.Index)
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		return nil, fmt.Errorf("move element %s: nothing to do", t.Key)
	}
	return cmd, nil
}

// canDropElement refuses rows without room for the dragged element's span.
func (r *Rows) canDropElement(t drag.Target, s drag.Slot) bool {
	if s.Parent == t.Parent {
		return true
	}
	dst, ok := r.Section(s.Parent)
	if !ok {
		return false
	}
	loc, ok := r.page.FindElement(t.Key)
	if !ok {
		return false
	}
	return hasRoom(dst.Elements, loc.Element.ColumnSpan)
}
