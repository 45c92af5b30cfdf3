/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

import "fmt"

// Move reparents or reorders a node. toIndex is the node's final position,
// i.e. it is interpreted after the node has been removed from its source.
type Move[T Keyed] struct {
	from, to           List[T]
	fromIndex, toIndex int
	key                string
}

// NewMove captures the node at fromIndex in from and its final index in to.
func NewMove[T Keyed](from List[T], fromIndex int, to List[T], toIndex int) (*Move[T], error) {
	if from == nil || to == nil {
		panic("command: Move with nil parent")
	}
	if fromIndex < 0 || fromIndex >= from.Len() {
		return nil, fmt.Errorf("%w: move from %d of %d", ErrStaleIndex, fromIndex, from.Len())
	}
	return &Move[T]{from: from, to: to, fromIndex: fromIndex, toIndex: toIndex, key: from.At(fromIndex).Key()}, nil
}

// NewMoveToSlot is like NewMove but takes an insertion slot counted on the target
// list as it looks before the node is removed (slot i = before the node at i).
// When source and target are the same list, slots past the origin shift down by one.
func NewMoveToSlot[T Keyed](from List[T], fromIndex int, to List[T], slot int) (*Move[T], error) {
	toIndex := slot
	if sameList(from, to) && slot > fromIndex {
		toIndex--
	}
	return NewMove(from, fromIndex, to, toIndex)
}

func (c *Move[T]) FromIndex() int { return c.fromIndex }
func (c *Move[T]) ToIndex() int   { return c.toIndex }

// NoOp reports whether the move leaves the node where it is.
func (c *Move[T]) NoOp() bool { return sameList(c.from, c.to) && c.fromIndex == c.toIndex }

func (c *Move[T]) Execute() error { return c.apply(c.from, c.fromIndex, c.to, c.toIndex) }

func (c *Move[T]) Undo() error { return c.apply(c.to, c.toIndex, c.from, c.fromIndex) }

// Redo replays the captured indices verbatim.
func (c *Move[T]) Redo() error { return c.Execute() }

// apply removes the node at si in src and inserts it at di in dst.
// Both positions are validated before either list is touched.
func (c *Move[T]) apply(src List[T], si int, dst List[T], di int) error {
	if err := expectAt(src, si, c.key); err != nil {
		return err
	}
	limit := dst.Len()
	if sameList(src, dst) {
		limit--
	}
	if di < 0 || di > limit {
		return fmt.Errorf("%w: move to %d of %d", ErrStaleIndex, di, limit)
	}
	n := src.RemoveAt(si)
	dst.Insert(di, n)
	return nil
}
