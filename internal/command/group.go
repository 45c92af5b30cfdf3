/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package command

import (
	"errors"

	"pagebuilder/internal/undo"
)

// Group runs several commands as one history entry. If a child fails, the
// children already applied are reverted in reverse order and the error is returned.
type Group struct {
	Name     string
	children []undo.Command
}

func NewGroup(name string, children ...undo.Command) *Group {
	return &Group{Name: name, children: children}
}

func (g *Group) Len() int { return len(g.children) }

func (g *Group) Execute() error {
	return g.run(func(c undo.Command) error { return c.Execute() })
}

func (g *Group) Redo() error {
	return g.run(func(c undo.Command) error { return c.Redo() })
}

func (g *Group) Undo() error {
	for i := len(g.children) - 1; i >= 0; i-- {
		if err := g.children[i].Undo(); err != nil {
			// re-apply what was already undone so the group stays whole
			var rbErr error
			for j := i + 1; j < len(g.children); j++ {
				if rerr := g.children[j].Redo(); rerr != nil {
					rbErr = errors.Join(rbErr, rerr)
				}
			}
			return errors.Join(err, rbErr)
		}
	}
	return nil
}

func (g *Group) run(step func(undo.Command) error) error {
	for i, c := range g.children {
		if err := step(c); err != nil {
			var rbErr error
			for j := i - 1; j >= 0; j-- {
				if uerr := g.children[j].Undo(); uerr != nil {
					rbErr = errors.Join(rbErr, uerr)
				}
			}
			return errors.Join(err, rbErr)
		}
	}
	return nil
}
