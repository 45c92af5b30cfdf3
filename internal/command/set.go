/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

// Set replaces a value through an apply func. Before and after are captured
// at construction, so redo never reads the current state.
type Set[V any] struct {
	apply         func(V)
	before, after V
}

func NewSet[V any](apply func(V), before, after V) *Set[V] {
	if apply == nil {
		panic("command: Set without apply func")
	}
	return &Set[V]{apply: apply, before: before, after: after}
}

func (c *Set[V]) Execute() error { c.apply(c.after); return nil }
func (c *Set[V]) Undo() error    { c.apply(c.before); return nil }
func (c *Set[V]) Redo() error    { return c.Execute() }
