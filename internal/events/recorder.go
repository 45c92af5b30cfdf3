/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package events

import (
	"context"
	"sync"
)

// Record is one delivered event.
type Record struct {
	Name    string
	Payload any
}

// Recorder captures events from a bus, mostly for tests and the CLI's verbose mode.
type Recorder struct {
	mu     sync.Mutex
	events []Record
	unsubs []func()
}

// Record subscribes the recorder to the given names on b.
func (r *Recorder) Record(b *Bus, names ...string) {
	for _, n := range names {
		name := n
		r.unsubs = append(r.unsubs, b.Subscribe(name, func(_ context.Context, p any) error {
			r.mu.Lock()
			r.events = append(r.events, Record{Name: name, Payload: p})
			r.mu.Unlock()
			return nil
		}))
	}
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.events...)
}

// Count returns how often name was seen.
func (r *Recorder) Count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Stop removes the recorder's subscriptions.
func (r *Recorder) Stop() {
	for _, u := range r.unsubs {
		u()
	}
	r.unsubs = nil
}
