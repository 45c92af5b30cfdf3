/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package drag tracks a pointer-driven reorder gesture. While dragging it only
// maintains transient view state (ghost and insertion marker); the model is
// changed exactly once, on release, by a command executed through the history.
package drag

import (
	"errors"
	"fmt"

	"pagebuilder/internal/geom"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/undo"
)

// State of the controller.
type State int

const (
	Idle State = iota
	Dragging
	Dropped
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Dropped:
		return "dropped"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Axis selects which coordinate is compared against candidate midpoints.
type Axis int

const (
	Vertical   Axis = iota // rows stack top to bottom
	Horizontal             // elements sit left to right
)

var (
	// ErrActive is returned by Begin while another gesture is in progress.
	ErrActive = errors.New("drag: a drag session is already active")
	// ErrNotDragging is returned by Release when no gesture is in progress.
	ErrNotDragging = errors.New("drag: no active drag session")
)

// Target is the node being dragged.
type Target struct {
	Key    string
	Parent string // key of the origin parent
	Index  int    // origin index within Parent
	Bounds geom.Rect
}

// Candidate is a rendered sibling the target may be dropped before or after.
// A Fill candidate stands for an empty parent: anywhere inside it means slot Index.
type Candidate struct {
	Key    string
	Parent string
	Index  int
	Bounds geom.Rect
	Fill   bool
}

// Slot is an insertion point counted before the dragged node is removed:
// Index i means "before the node currently at i".
type Slot struct {
	Parent string
	Index  int
}

// Validator decides whether the target may be dropped into a slot.
type Validator func(t Target, s Slot) bool

// Builder turns a resolved drop into a command.
type Builder func(t Target, s Slot) (undo.Command, error)

// Executor runs commands; *undo.History satisfies it.
type Executor interface {
	Execute(cmd undo.Command) error
}

// View is the transient feedback the renderer draws during a gesture.
type View struct {
	Ghost     geom.Rect
	Marker    geom.Rect
	HasMarker bool
}

// Session is the state of one gesture. It is never persisted.
type Session struct {
	Target Target
	Start  geom.Pt
	Offset geom.Pt // pointer position relative to the target's top-left corner
	Hover  *Slot
}

// Options configure a controller.
type Options struct {
	Axis     Axis
	Reach    float64 // max distance outside a candidate that still counts as hovering it
	Validate Validator
	Build    Builder
	Exec     Executor
}

// Result describes how a gesture ended.
type Result struct {
	State   State
	Slot    Slot
	Command undo.Command // nil when the drop was cancelled or elided
}

// Controller is the drag state machine. It is meant to be driven from a single
// event loop and is not safe for concurrent use.
type Controller struct {
	opts       Options
	state      State
	session    *Session
	candidates []Candidate
	view       View
}

func New(opts Options) *Controller {
	if opts.Build == nil || opts.Exec == nil {
		panic("drag: controller needs a Builder and an Executor")
	}
	if opts.Reach < 0 {
		opts.Reach = 0
	}
	return &Controller{opts: opts}
}

func (c *Controller) State() State { return c.state }
func (c *Controller) View() View   { return c.view }

// Session returns a copy of the active session, or nil.
func (c *Controller) Session() *Session {
	if c.session == nil {
		return nil
	}
	s := *c.session
	if s.Hover != nil {
		h := *s.Hover
		s.Hover = &h
	}
	return &s
}

// Begin starts a gesture on t with the pointer at p. Candidates are the
// currently rendered siblings in view coordinates.
func (c *Controller) Begin(t Target, p geom.Pt, candidates []Candidate) error {
	if c.session != nil {
		return ErrActive
	}
	c.session = &Session{Target: t, Start: p, Offset: p.Sub(t.Bounds.Min())}
	c.candidates = append([]Candidate(nil), candidates...)
	c.state = Dragging
	c.view = View{Ghost: t.Bounds}
	applog.WithComponent("drag").Debug("begin", "key", t.Key, "parent", t.Parent, "index", t.Index)
	return nil
}

// Move updates the hover slot for pointer p. It returns the slot and whether
// one is hovered. The same p always yields the same slot.
func (c *Controller) Move(p geom.Pt) (Slot, bool) {
	if c.session == nil {
		return Slot{}, false
	}
	c.view.Ghost = c.session.Target.Bounds.Translate(p.Sub(c.session.Start))
	slot, marker, ok := c.resolve(p)
	if !ok {
		c.session.Hover = nil
		c.view.HasMarker = false
		c.view.Marker = geom.Rect{}
		return Slot{}, false
	}
	c.session.Hover = &slot
	c.view.Marker = marker
	c.view.HasMarker = true
	return slot, true
}

// Release ends the gesture at p. Over a valid slot the Builder's command is
// executed through the Executor; a drop onto the origin is elided. Outside any
// valid slot the gesture is cancelled and no command is built.
func (c *Controller) Release(p geom.Pt) (Result, error) {
	if c.session == nil {
		return Result{State: c.state}, ErrNotDragging
	}
	slot, ok := c.Move(p)
	t := c.session.Target
	if !ok {
		c.finish(Cancelled)
		return Result{State: Cancelled}, nil
	}
	if IsOrigin(t, slot) {
		c.finish(Dropped)
		return Result{State: Dropped, Slot: slot}, nil
	}
	cmd, err := c.opts.Build(t, slot)
	if err == nil {
		err = c.opts.Exec.Execute(cmd)
	}
	if err != nil {
		applog.WithComponent("drag").Error("drop aborted", "key", t.Key, "parent", slot.Parent, "slot", slot.Index, "err", err)
		c.finish(Cancelled)
		return Result{State: Cancelled, Slot: slot}, err
	}
	c.finish(Dropped)
	return Result{State: Dropped, Slot: slot, Command: cmd}, nil
}

// Cancel discards the active gesture without touching the model.
func (c *Controller) Cancel() {
	if c.session == nil {
		return
	}
	c.finish(Cancelled)
}

func (c *Controller) finish(s State) {
	c.state = s
	c.session = nil
	c.candidates = nil
	c.view = View{}
}

// IsOrigin reports whether dropping t into s leaves it where it is.
func IsOrigin(t Target, s Slot) bool {
	return s.Parent == t.Parent && (s.Index == t.Index || s.Index == t.Index+1)
}

// resolve picks the candidate containing p, or the nearest one within Reach,
// and derives the slot from which side of its midpoint p lies on.
func (c *Controller) resolve(p geom.Pt) (Slot, geom.Rect, bool) {
	best := -1
	bestDist := 0.0
	for i, cand := range c.candidates {
		d := cand.Bounds.Distance(p)
		if d > c.opts.Reach {
			continue
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return Slot{}, geom.Rect{}, false
	}
	cand := c.candidates[best]
	slot := Slot{Parent: cand.Parent, Index: cand.Index}
	before := true
	if !cand.Fill {
		mid := cand.Bounds.Mid()
		if c.opts.Axis == Vertical {
			before = p.Y < mid.Y
		} else {
			before = p.X < mid.X
		}
		if !before {
			slot.Index++
		}
	}
	if c.opts.Validate != nil && !c.opts.Validate(c.session.Target, slot) {
		return Slot{}, geom.Rect{}, false
	}
	return slot, c.marker(cand, before), true
}

const markerThickness = 2

func (c *Controller) marker(cand Candidate, before bool) geom.Rect {
	b := cand.Bounds
	if cand.Fill {
		return b
	}
	if c.opts.Axis == Vertical {
		y := b.Y + b.H
		if before {
			y = b.Y
		}
		return geom.R(b.X, y-markerThickness/2, b.W, markerThickness)
	}
	x := b.X + b.W
	if before {
		x = b.X
	}
	return geom.R(x-markerThickness/2, b.Y, markerThickness, b.H)
}
