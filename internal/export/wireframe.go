/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders layout wireframes of a page: one strip per row and
// one box per placed element, labeled with its module. Output formats are
// PDF, PNG and SVG; all of them draw the same Wireframe computed by Plan.
package export

import (
	"image/color"
	"strings"

	"pagebuilder/internal/domain"
)

// Viewport is a named page width the wireframe is laid out for.
// Stack places every element of a row on its own full-width line, the way
// narrow screens collapse the grid.
type Viewport struct {
	Name  string
	Width float64
	Stack bool
}

var (
	Desktop = Viewport{Name: "desktop", Width: 1200}
	Tablet  = Viewport{Name: "tablet", Width: 768}
	Mobile  = Viewport{Name: "mobile", Width: 375, Stack: true}
)

// ViewportByName looks up one of the built-in viewports.
func ViewportByName(name string) (Viewport, bool) {
	for _, v := range []Viewport{Desktop, Tablet, Mobile} {
		if strings.EqualFold(v.Name, name) {
			return v, true
		}
	}
	return Viewport{}, false
}

// Options controls wireframe layout. Units are pixels of the viewport;
// the PDF writer maps them 1:1 to points.
type Options struct {
	Viewport  Viewport
	RowHeight float64 // height of one element box
	Padding   float64 // outer page margin
	Gutter    float64 // space between rows and between stacked boxes
	Title     string  // drawn above the first row when non-empty

	RowStroke     color.RGBA
	ElementStroke color.RGBA
	ElementFill   color.RGBA
	LabelColor    color.RGBA
}

func (o Options) withDefaults() Options {
	if o.Viewport.Width <= 0 {
		o.Viewport = Desktop
	}
	if o.RowHeight <= 0 {
		o.RowHeight = 80
	}
	if o.Padding <= 0 {
		o.Padding = 24
	}
	if o.Gutter <= 0 {
		o.Gutter = 12
	}
	if o.RowStroke == (color.RGBA{}) {
		o.RowStroke = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	}
	if o.ElementStroke == (color.RGBA{}) {
		o.ElementStroke = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	}
	if o.ElementFill == (color.RGBA{}) {
		o.ElementFill = color.RGBA{R: 235, G: 242, B: 250, A: 255}
	}
	if o.LabelColor == (color.RGBA{}) {
		o.LabelColor = color.RGBA{A: 255}
	}
	return o
}

// BoxKind tells rows from elements.
type BoxKind int

const (
	RowBox BoxKind = iota
	ElementBox
)

// Box is one rectangle of the wireframe, top-left origin.
type Box struct {
	Kind  BoxKind
	ID    string
	Label string
	X, Y  float64
	W, H  float64
}

// Wireframe is the laid-out page.
type Wireframe struct {
	Width, Height float64
	Title         string
	Boxes         []Box
	Options       Options
}

const titleHeight = 32

// Plan lays out p for the viewport in opt. Elements hidden on the viewport
// are left out; a row keeps its strip even when all its elements are hidden.
func Plan(p *domain.PageData, opt Options) Wireframe {
	opt = opt.withDefaults()
	w := Wireframe{Width: opt.Viewport.Width, Title: opt.Title, Options: opt}
	if w.Title == "" && p != nil {
		w.Title = firstNonEmpty(p.Title, p.Name)
	}
	inner := opt.Viewport.Width - 2*opt.Padding
	colW := inner / domain.MaxColumns
	y := opt.Padding
	if w.Title != "" {
		y += titleHeight
	}
	if p != nil {
		for _, sec := range p.Sections {
			if sec == nil {
				continue
			}
			var shown []*domain.Element
			for _, el := range sec.Elements {
				if el != nil && VisibleOn(el, opt.Viewport.Name) {
					shown = append(shown, el)
				}
			}
			rowH := opt.RowHeight
			if opt.Viewport.Stack && len(shown) > 1 {
				rowH = float64(len(shown))*opt.RowHeight + float64(len(shown)-1)*opt.Gutter
			}
			w.Boxes = append(w.Boxes, Box{Kind: RowBox, ID: sec.ID, Label: sec.ID, X: opt.Padding, Y: y, W: inner, H: rowH})
			for i, el := range shown {
				b := Box{Kind: ElementBox, ID: el.ID, Label: ElementLabel(el), H: opt.RowHeight}
				if opt.Viewport.Stack {
					b.X, b.W = opt.Padding, inner
					b.Y = y + float64(i)*(opt.RowHeight+opt.Gutter)
				} else {
					b.X = opt.Padding + float64(el.Column-1)*colW
					b.W = float64(el.ColumnSpan) * colW
					b.Y = y
				}
				w.Boxes = append(w.Boxes, b)
			}
			y += rowH + opt.Gutter
		}
	}
	w.Height = y - opt.Gutter + opt.Padding
	if w.Height < 2*opt.Padding {
		w.Height = 2 * opt.Padding
	}
	return w
}

// VisibleOn reports whether el is shown on the named viewport. VisibleOn and
// InvisibleOn hold comma or space separated viewport names; an empty
// VisibleOn means every viewport.
func VisibleOn(el *domain.Element, viewport string) bool {
	if hasName(el.InvisibleOn, viewport) {
		return false
	}
	return strings.TrimSpace(el.VisibleOn) == "" || hasName(el.VisibleOn, viewport)
}

func hasName(list, name string) bool {
	for _, f := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' }) {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// ElementLabel names an element in the wireframe: the module name, else its type.
func ElementLabel(el *domain.Element) string {
	if el.Module != nil {
		if n := firstNonEmpty(el.Module.Name, el.Module.LocalPath, el.Module.IPFSCID); n != "" {
			return n
		}
	}
	if el.IsComposite() {
		return "composite"
	}
	return "element"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
