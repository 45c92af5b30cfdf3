/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"errors"
	"sync"
)

// Command is a reversible unit of change.
// After Execute succeeds, Undo must restore the prior state exactly and Redo must
// reproduce the post-Execute state from captured positions, never from the current one.
type Command interface {
	Execute() error
	Undo() error
	Redo() error
}

// ErrReentrant is returned when a command calls back into the history while it runs.
var ErrReentrant = errors.New("undo: history is busy")

// Config controls depth caps.
type Config struct {
	// MaxDepth limits the number of commands kept (0 means unlimited).
	// The oldest entries are dropped first.
	MaxDepth int
}

// History is a linear undo/redo stack. current points at the last applied
// command; commands after it are undone and can be redone until a new command
// is executed.
type History struct {
	cfg      Config
	mu       sync.Mutex
	commands []Command
	current  int
	busy     bool
}

func NewHistory(cfg Config) *History {
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	return &History{cfg: cfg, current: -1}
}

// Execute runs cmd and records it. A failing command is not recorded and the
// redo tail is kept.
func (h *History) Execute(cmd Command) error {
	h.mu.Lock()
	if h.busy {
		h.mu.Unlock()
		return ErrReentrant
	}
	h.busy = true
	h.mu.Unlock()

	err := cmd.Execute()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.busy = false
	if err != nil {
		return err
	}
	// Any new change invalidates redo
	h.commands = append(h.commands[:h.current+1], cmd)
	h.current = len(h.commands) - 1
	h.enforceCapsLocked()
	return nil
}

// Undo reverts the last applied command. It reports false when there is nothing to undo.
func (h *History) Undo() (bool, error) {
	h.mu.Lock()
	if h.busy {
		h.mu.Unlock()
		return false, ErrReentrant
	}
	if h.current < 0 {
		h.mu.Unlock()
		return false, nil
	}
	cmd := h.commands[h.current]
	h.busy = true
	h.mu.Unlock()

	err := cmd.Undo()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.busy = false
	if err != nil {
		return false, err
	}
	h.current--
	return true, nil
}

// Redo re-applies the next undone command. It reports false at the end of history.
func (h *History) Redo() (bool, error) {
	h.mu.Lock()
	if h.busy {
		h.mu.Unlock()
		return false, ErrReentrant
	}
	if h.current >= len(h.commands)-1 {
		h.mu.Unlock()
		return false, nil
	}
	cmd := h.commands[h.current+1]
	h.busy = true
	h.mu.Unlock()

	err := cmd.Redo()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.busy = false
	if err != nil {
		return false, err
	}
	h.current++
	return true, nil
}

// Clear drops all commands, e.g. when a new document is loaded.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.busy {
		return ErrReentrant
	}
	h.commands = nil
	h.current = -1
	return nil
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current >= 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current < len(h.commands)-1
}

// Len returns the number of recorded commands, including undone ones.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.commands)
}

// Index returns the position of the last applied command, -1 when none.
func (h *History) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

func (h *History) enforceCapsLocked() {
	if h.cfg.MaxDepth <= 0 || len(h.commands) <= h.cfg.MaxDepth {
		return
	}
	// drop the oldest extras
	toDrop := len(h.commands) - h.cfg.MaxDepth
	h.commands = append([]Command{}, h.commands[toDrop:]...)
	h.current -= toDrop
}
