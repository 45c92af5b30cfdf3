/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "github.com/google/uuid"

// NewID returns a fresh random identifier for sections and elements.
func NewID() string { return uuid.NewString() }

// KeepID is an id function that preserves existing ids. It turns Clone into a plain deep copy.
func KeepID(old string) string { return old }

// FreshID ignores the old id and returns NewID.
func FreshID(string) string { return NewID() }

// Clone deep-copies the section. Every id in the copy (the section and all
// nested elements) is produced by newID from the original id.
func (s *Section) Clone(newID func(old string) string) *Section {
	if s == nil {
		return nil
	}
	out := *s
	out.ID = newID(s.ID)
	out.Elements = cloneElements(s.Elements, newID)
	return &out
}

// Clone deep-copies the element and its nested elements, see Section.Clone.
func (e *Element) Clone(newID func(old string) string) *Element {
	if e == nil {
		return nil
	}
	out := *e
	out.ID = newID(e.ID)
	out.Properties = copyMap(e.Properties)
	out.Elements = cloneElements(e.Elements, newID)
	if e.Module != nil {
		m := *e.Module
		m.Category = e.Module.Category.clone()
		m.Dependencies = copyMap(e.Module.Dependencies)
		out.Module = &m
	}
	return &out
}

// Clone returns a deep copy of the page with ids preserved.
func (p *PageData) Clone() *PageData {
	if p == nil {
		return nil
	}
	out := *p
	if p.Header != nil {
		h := *p.Header
		h.Elements = cloneElements(p.Header.Elements, KeepID)
		out.Header = &h
	}
	if p.Footer != nil {
		f := *p.Footer
		f.Elements = cloneElements(p.Footer.Elements, KeepID)
		out.Footer = &f
	}
	if p.Sections != nil {
		out.Sections = make([]*Section, len(p.Sections))
		for i, s := range p.Sections {
			out.Sections[i] = s.Clone(KeepID)
		}
	}
	return &out
}

func cloneElements(in []*Element, newID func(string) string) []*Element {
	if in == nil {
		return nil
	}
	out := make([]*Element, len(in))
	for i, e := range in {
		out[i] = e.Clone(newID)
	}
	return out
}

// CopyProperties returns a deep copy of an element properties map.
func CopyProperties(m map[string]any) map[string]any { return copyMap(m) }

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue copies the container shapes produced by encoding/json; other values are shared.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = copyValue(x)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, x := range t {
			out[i] = copyMap(x)
		}
		return out
	default:
		return v
	}
}
