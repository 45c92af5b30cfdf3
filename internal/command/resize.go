/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

import "pagebuilder/internal/domain"

// Sizer is a node whose declared dimensions can be set.
type Sizer interface {
	SetSize(s domain.Size)
}

// Resize applies a final size on execute and redo and the initial size on undo.
// Dimensions are passed through verbatim ("300", "100%").
type Resize struct {
	target         Sizer
	initial, final domain.Size
}

func NewResize(target Sizer, initial, final domain.Size) *Resize {
	if target == nil {
		panic("command: Resize without target")
	}
	return &Resize{target: target, initial: initial, final: final}
}

func (c *Resize) Initial() domain.Size { return c.initial }
func (c *Resize) Final() domain.Size   { return c.final }

func (c *Resize) Execute() error { c.target.SetSize(c.final); return nil }
func (c *Resize) Undo() error    { c.target.SetSize(c.initial); return nil }
func (c *Resize) Redo() error    { return c.Execute() }
