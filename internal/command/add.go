/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

import "fmt"

// Add inserts a node into a parent list at an index fixed at construction.
type Add[T Keyed] struct {
	list  List[T]
	node  T
	index int
}

// NewAdd builds an insert of node into list at index; index < 0 appends.
// The append position is resolved now, not when the command runs.
// A nil list is a programming error and panics.
func NewAdd[T Keyed](list List[T], node T, index int) *Add[T] {
	if list == nil {
		panic("command: Add into nil parent")
	}
	if index < 0 || index > list.Len() {
		index = list.Len()
	}
	return &Add[T]{list: list, node: node, index: index}
}

// Index is the absolute position the node is inserted at.
func (c *Add[T]) Index() int { return c.index }

// Node returns the inserted node.
func (c *Add[T]) Node() T { return c.node }

func (c *Add[T]) Execute() error {
	if c.index > c.list.Len() {
		return fmt.Errorf("%w: insert at %d of %d", ErrStaleIndex, c.index, c.list.Len())
	}
	c.list.Insert(c.index, c.node)
	return nil
}

func (c *Add[T]) Undo() error {
	if err := expectAt(c.list, c.index, c.node.Key()); err != nil {
		return err
	}
	c.list.RemoveAt(c.index)
	return nil
}

func (c *Add[T]) Redo() error { return c.Execute() }

// Remove deletes a node. It is the inverse of Add: undo reinserts the node
// with its original content at its original index.
type Remove[T Keyed] struct {
	list  List[T]
	key   string
	index int
	node  T
}

// NewRemove locates key in list and captures its index.
func NewRemove[T Keyed](list List[T], key string) (*Remove[T], error) {
	if list == nil {
		panic("command: Remove from nil parent")
	}
	i := IndexOf(list, key)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return &Remove[T]{list: list, key: key, index: i, node: list.At(i)}, nil
}

// Index is the position the node was removed from.
func (c *Remove[T]) Index() int { return c.index }

// Node returns the removed node.
func (c *Remove[T]) Node() T { return c.node }

func (c *Remove[T]) Execute() error {
	if err := expectAt(c.list, c.index, c.key); err != nil {
		return err
	}
	c.node = c.list.RemoveAt(c.index)
	return nil
}

func (c *Remove[T]) Undo() error {
	if c.index > c.list.Len() {
		return fmt.Errorf("%w: reinsert at %d of %d", ErrStaleIndex, c.index, c.list.Len())
	}
	c.list.Insert(c.index, c.node)
	return nil
}

func (c *Remove[T]) Redo() error { return c.Execute() }
