/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package events is a small synchronous named-event bus used between the
// structural core and the panels around it.
package events

import (
	"context"
	"sync"

	applog "pagebuilder/internal/log"
)

// Event names.
const (
	AddElement      = "add-element"
	SectionsUpdated = "sections-updated"
	FooterUpdated   = "footer-updated"
	Load            = "load"
	Save            = "save"
	ConfigSave      = "config-save"
	ConfigChange    = "config-change"
	Clone           = "clone"
	Resize          = "resize"
	Preview         = "preview"
)

// Handler receives a published payload. A returned error is logged and does
// not stop delivery to later subscribers.
type Handler func(ctx context.Context, payload any) error

type subscription struct {
	id int
	h  Handler
}

// Bus dispatches events to handlers in subscription order on the publisher's goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: map[string][]subscription{}}
}

// Subscribe registers h for name and returns a func that removes it again.
func (b *Bus) Subscribe(name string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, h: h})
	var once sync.Once
	return func() {
		once.Do(func() { b.remove(name, id) })
	}
}

func (b *Bus) remove(name string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[name]
	for i, s := range list {
		if s.id == id {
			b.subs[name] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}

// Publish delivers payload to every handler of name and returns the number of handlers called.
func (b *Bus) Publish(ctx context.Context, name string, payload any) int {
	b.mu.RLock()
	list := append([]subscription(nil), b.subs[name]...)
	b.mu.RUnlock()
	for _, s := range list {
		if err := s.h(ctx, payload); err != nil {
			applog.WithComponent("events").Error("handler failed", "event", name, "err", err)
		}
	}
	return len(list)
}

// Subscribers returns the number of handlers registered for name.
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[name])
}
