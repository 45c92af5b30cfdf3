/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"errors"
	"fmt"
)

// MaxColumns is the width of the row grid.
const MaxColumns = 12

var (
	ErrSpanRange     = errors.New("column span out of range")
	ErrColumnRange   = errors.New("column out of range")
	ErrColumnOverlap = errors.New("columns overlap")
	ErrRowFull       = errors.New("row capacity exceeded")
)

// span is the half-open column range [start, end) of one element.
type span struct{ start, end int }

func (a span) overlaps(b span) bool { return a.start < b.end && b.start < a.end }

// ValidateRow checks the grid invariants of sibling elements: every span lies in
// [1,MaxColumns], fits inside the grid, no two ranges overlap and the total span
// does not exceed MaxColumns.
func ValidateRow(elements []*Element) error {
	total := 0
	spans := make([]span, 0, len(elements))
	for _, e := range elements {
		if e.ColumnSpan < 1 || e.ColumnSpan > MaxColumns {
			return fmt.Errorf("element %s: %w: %d", e.ID, ErrSpanRange, e.ColumnSpan)
		}
		if e.Column < 1 || e.Column+e.ColumnSpan-1 > MaxColumns {
			return fmt.Errorf("element %s: %w: column %d span %d", e.ID, ErrColumnRange, e.Column, e.ColumnSpan)
		}
		s := span{e.Column, e.Column + e.ColumnSpan}
		for _, o := range spans {
			if s.overlaps(o) {
				return fmt.Errorf("element %s: %w", e.ID, ErrColumnOverlap)
			}
		}
		spans = append(spans, s)
		total += e.ColumnSpan
	}
	if total > MaxColumns {
		return fmt.Errorf("%w: total span %d", ErrRowFull, total)
	}
	return nil
}

// UsedColumns sums the spans of the given elements.
func UsedColumns(elements []*Element) int {
	n := 0
	for _, e := range elements {
		n += e.ColumnSpan
	}
	return n
}

// FreeColumn returns the first 1-based column where a block of the given span
// fits without overlapping any element. ok is false when no gap is wide enough.
func FreeColumn(elements []*Element, columnSpan int) (column int, ok bool) {
	if columnSpan < 1 || columnSpan > MaxColumns {
		return 0, false
	}
	var used [MaxColumns + 1]bool
	for _, e := range elements {
		for c := e.Column; c < e.Column+e.ColumnSpan && c <= MaxColumns; c++ {
			if c >= 1 {
				used[c] = true
			}
		}
	}
	for start := 1; start+columnSpan-1 <= MaxColumns; start++ {
		free := true
		for c := start; c < start+columnSpan; c++ {
			if used[c] {
				free = false
				break
			}
		}
		if free {
			return start, true
		}
	}
	return 0, false
}

// Renumber rewrites Section.Row so it equals the 1-based array position.
func Renumber(sections []*Section) {
	for i, s := range sections {
		s.Row = i + 1
	}
}

// FindSection returns the section with the given id and its index, or -1.
func (p *PageData) FindSection(id string) (*Section, int) {
	for i, s := range p.Sections {
		if s.ID == id {
			return s, i
		}
	}
	return nil, -1
}

// ElementLocation describes where an element sits in the tree.
// Siblings points at the slice holding the element; Section is the owning row
// and Parent the composite element directly above it (nil for top-level elements).
type ElementLocation struct {
	Section  *Section
	Parent   *Element
	Siblings *[]*Element
	Index    int
	Element  *Element
}

// FindElement searches all rows, including nested composite elements.
func (p *PageData) FindElement(id string) (ElementLocation, bool) {
	for _, s := range p.Sections {
		if loc, ok := findIn(&s.Elements, s, nil, id); ok {
			return loc, true
		}
	}
	return ElementLocation{}, false
}

func findIn(list *[]*Element, s *Section, parent *Element, id string) (ElementLocation, bool) {
	for i, e := range *list {
		if e.ID == id {
			return ElementLocation{Section: s, Parent: parent, Siblings: list, Index: i, Element: e}, true
		}
		if len(e.Elements) > 0 {
			if loc, ok := findIn(&e.Elements, s, e, id); ok {
				return loc, true
			}
		}
	}
	return ElementLocation{}, false
}
