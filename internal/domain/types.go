/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the page document model edited by the builder.
// It is pure data: all mutation goes through commands routed by the editor session.

// PageData is the persisted page document.
// It serializes to the same JSON shape the builder loads and saves.
type PageData struct {
	CID      string     `json:"cid,omitempty"`
	Title    string     `json:"title,omitempty"`
	Name     string     `json:"name,omitempty"`
	Path     string     `json:"path,omitempty"`
	URL      string     `json:"url,omitempty"`
	Visible  bool       `json:"visible,omitempty"`
	Header   *Header    `json:"header,omitempty"`
	Sections []*Section `json:"sections"`
	Footer   *Footer    `json:"footer,omitempty"`
}

// HeaderType selects the banner variant rendered above the rows.
type HeaderType string

const (
	HeaderCover  HeaderType = "cover"
	HeaderLarge  HeaderType = "largeBanner"
	HeaderNormal HeaderType = "banner"
	HeaderTitle  HeaderType = "titleOnly"
)

type Header struct {
	HeaderType HeaderType `json:"headerType"`
	Image      string     `json:"image,omitempty"`
	Elements   []*Element `json:"elements"`
}

type Footer struct {
	Image    string     `json:"image,omitempty"`
	Elements []*Element `json:"elements"`
}

// Section is one horizontal row of the page.
// Row is 1-based and always equals the section's position in PageData.Sections
// once an operation has completed.
type Section struct {
	ID              string     `json:"id"`
	Row             int        `json:"row"`
	Image           string     `json:"image,omitempty"`
	BackgroundColor string     `json:"backgroundColor,omitempty"`
	Elements        []*Element `json:"elements"`
}

// Key identifies the section inside ordered lists.
func (s *Section) Key() string { return s.ID }

// ElementType distinguishes leaf blocks from containers.
type ElementType string

const (
	ElementPrimitive ElementType = "primitive"
	ElementComposite ElementType = "composite"
)

// Element is a placed content unit inside a row.
// Column is the 1-based start slot and ColumnSpan the number of grid columns it occupies.
type Element struct {
	ID          string         `json:"id"`
	Column      int            `json:"column"`
	ColumnSpan  int            `json:"columnSpan"`
	Type        ElementType    `json:"type"`
	Module      *ModuleRef     `json:"module,omitempty"`
	Properties  map[string]any `json:"properties"`
	Elements    []*Element     `json:"elements,omitempty"`
	VisibleOn   string         `json:"visibleOn,omitempty"`
	InvisibleOn string         `json:"invisibleOn,omitempty"`
}

// Key identifies the element inside ordered lists.
func (e *Element) Key() string { return e.ID }

// IsComposite reports whether the element may hold nested elements.
func (e *Element) IsComposite() bool { return e.Type == ElementComposite }

// ModuleRef identifies an embeddable content block. It is resolved by an
// external loader either from a content identifier or a local path.
type ModuleRef struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	IPFSCID      string         `json:"ipfscid,omitempty"`
	ImgURL       string         `json:"imgUrl,omitempty"`
	Local        bool           `json:"local,omitempty"`
	LocalPath    string         `json:"localPath,omitempty"`
	Path         string         `json:"path,omitempty"`
	Category     Categories     `json:"category,omitzero"`
	ChainID      int64          `json:"chainId,omitempty"`
	PackageID    int64          `json:"packageId,omitempty"`
	ProjectID    int64          `json:"projectId,omitempty"`
	Dependencies map[string]any `json:"dependencies,omitempty"`
}

// Key returns the identity used for caching resolved modules.
func (m ModuleRef) Key() string {
	if m.IPFSCID != "" {
		return "cid:" + m.IPFSCID
	}
	if m.LocalPath != "" {
		return "local:" + m.LocalPath
	}
	return "name:" + m.Name
}

// RowSettings is the patch produced by the row settings dialog.
type RowSettings struct {
	BackgroundColor    string `json:"backgroundColor,omitempty"`
	BackgroundImageURL string `json:"backgroundImageUrl,omitempty"`
}

// Dimension is a width or height value applied verbatim, e.g. "320" or "100%".
type Dimension string

// Size pairs the declared width and height of a node.
type Size struct {
	Width  Dimension `json:"width"`
	Height Dimension `json:"height"`
}
