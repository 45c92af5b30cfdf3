/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package command implements the reversible structural edits of the page tree.
// Every command captures absolute positions when it is constructed and validates
// them against the live list before touching it, so a stale command aborts
// without partial mutation instead of corrupting sibling order.
package command

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleIndex means a captured index no longer exists in the list.
	ErrStaleIndex = errors.New("command: stale index")
	// ErrKeyMismatch means the node at a captured index is not the node the command expects.
	ErrKeyMismatch = errors.New("command: node mismatch")
	// ErrNotFound means a node could not be located when the command was built.
	ErrNotFound = errors.New("command: node not found")
)

// Keyed is implemented by tree nodes with a stable identity.
type Keyed interface {
	Key() string
}

// List is an ordered child sequence that commands splice.
type List[T Keyed] interface {
	Len() int
	At(i int) T
	Insert(i int, v T)
	RemoveAt(i int) T
}

// SliceList adapts a slice field. onChange (optional) runs after each insert or removal.
func SliceList[T Keyed](ptr *[]T, onChange func()) List[T] {
	if ptr == nil {
		panic("command: SliceList on nil slice pointer")
	}
	return &sliceList[T]{ptr: ptr, onChange: onChange}
}

type sliceList[T Keyed] struct {
	ptr      *[]T
	onChange func()
}

func (l *sliceList[T]) Len() int   { return len(*l.ptr) }
func (l *sliceList[T]) At(i int) T { return (*l.ptr)[i] }

func (l *sliceList[T]) changed() {
	if l.onChange != nil {
		l.onChange()
	}
}

func (l *sliceList[T]) Insert(i int, v T) {
	s := *l.ptr
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	*l.ptr = s
	l.changed()
}

func (l *sliceList[T]) RemoveAt(i int) T {
	s := *l.ptr
	v := s[i]
	copy(s[i:], s[i+1:])
	var zero T
	s[len(s)-1] = zero
	*l.ptr = s[:len(s)-1]
	l.changed()
	return v
}

// IndexOf returns the position of the node with the given key, or -1.
func IndexOf[T Keyed](l List[T], key string) int {
	for i := 0; i < l.Len(); i++ {
		if l.At(i).Key() == key {
			return i
		}
	}
	return -1
}

// expectAt verifies that the node at i carries key.
func expectAt[T Keyed](l List[T], i int, key string) error {
	if i < 0 || i >= l.Len() {
		return fmt.Errorf("%w: %d of %d", ErrStaleIndex, i, l.Len())
	}
	if got := l.At(i).Key(); got != key {
		return fmt.Errorf("%w: at %d want %s got %s", ErrKeyMismatch, i, key, got)
	}
	return nil
}

// sameList reports whether two lists address the same underlying sequence.
func sameList[T Keyed](a, b List[T]) bool {
	if sa, ok := a.(*sliceList[T]); ok {
		if sb, ok := b.(*sliceList[T]); ok {
			return sa.ptr == sb.ptr
		}
	}
	return a == b
}
