/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"path/filepath"
	"strings"

	"pagebuilder/internal/domain"
)

// BatchOptions controls batch export across formats and viewports.
//
// Files are written as <OutDir>/<viewport>/<name>.<format>, where name is
// the page name or "page".
type BatchOptions struct {
	Formats   []string   // allowed: pdf, png, svg; empty means all three
	Viewports []Viewport // empty means desktop, tablet and mobile
	OutDir    string
	Scale     float64 // PNG scale
	Layout    Options // Viewport is overwritten per run
}

// BatchExport writes every requested format for every viewport and returns the written paths.
func BatchExport(p *domain.PageData, opt BatchOptions) ([]string, error) {
	if p == nil {
		return nil, fmt.Errorf("page is nil")
	}
	if opt.OutDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = []string{"pdf", "png", "svg"}
	}
	viewports := opt.Viewports
	if len(viewports) == 0 {
		viewports = []Viewport{Desktop, Tablet, Mobile}
	}
	name := firstNonEmpty(p.Name, "page")

	var written []string
	for _, vp := range viewports {
		lo := opt.Layout
		lo.Viewport = vp
		for _, f := range formats {
			f = strings.ToLower(strings.TrimSpace(f))
			out := filepath.Join(opt.OutDir, vp.Name, name+"."+f)
			var err error
			switch f {
			case "pdf":
				err = WireframePDF(p, out, lo)
			case "png":
				err = WireframePNG(p, out, lo, opt.Scale)
			case "svg":
				err = WireframeSVG(p, out, lo)
			default:
				return written, fmt.Errorf("unknown format: %s", f)
			}
			if err != nil {
				return written, fmt.Errorf("%s %s: %w", f, vp.Name, err)
			}
			written = append(written, out)
		}
	}
	return written, nil
}
