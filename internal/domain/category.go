/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CategoryTag is one entry of a module's category list as the module
// registry publishes it.
type CategoryTag struct {
	Icon string `json:"icon,omitempty"`
	Idx  string `json:"idx,omitempty"`
	Name string `json:"name"`
}

// Categories is the category of a module. Pages store it either as a plain
// name ("components") or as a list of tags; the form read is the form written.
type Categories struct {
	Name string
	Tags []CategoryTag
}

// Category returns the plain-name form.
func Category(name string) Categories { return Categories{Name: name} }

// Is reports whether the module belongs to the named category, matching the
// plain name or any tag's name.
func (c Categories) Is(name string) bool {
	if c.Name == name {
		return name != ""
	}
	for _, t := range c.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (c Categories) IsZero() bool { return c.Name == "" && c.Tags == nil }

func (c Categories) String() string {
	if c.Tags == nil {
		return c.Name
	}
	out := ""
	for i, t := range c.Tags {
		if i > 0 {
			out += ","
		}
		out += t.Name
	}
	return out
}

func (c Categories) MarshalJSON() ([]byte, error) {
	if c.Tags != nil {
		return json.Marshal(c.Tags)
	}
	return json.Marshal(c.Name)
}

func (c *Categories) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*c = Categories{}
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		return nil
	case b[0] == '"':
		return json.Unmarshal(b, &c.Name)
	case b[0] == '[':
		tags := []CategoryTag{}
		if err := json.Unmarshal(b, &tags); err != nil {
			return fmt.Errorf("module category: %w", err)
		}
		c.Tags = tags
		return nil
	}
	return fmt.Errorf("module category: want a string or a list, got %s", b)
}

func (c Categories) clone() Categories {
	if c.Tags != nil {
		c.Tags = append([]CategoryTag{}, c.Tags...)
	}
	return c
}
