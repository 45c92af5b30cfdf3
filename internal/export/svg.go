/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"pagebuilder/internal/domain"
)

// RenderSVG returns the wireframe of p as an SVG document.
func RenderSVG(p *domain.PageData, opt Options) ([]byte, error) {
	frame := Plan(p, opt)
	o := frame.Options

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%gpx\" height=\"%gpx\" viewBox=\"0 0 %g %g\">\n", frame.Width, frame.Height, frame.Width, frame.Height)
	wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"#ffffff\"/>\n", frame.Width, frame.Height)
	if frame.Title != "" {
		wf("  <text x=\"%g\" y=\"%g\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"14\" font-weight=\"bold\" fill=\"%s\">%s</text>\n",
			o.Padding, o.Padding+16, svgColor(o.LabelColor), escText(frame.Title))
	}
	for _, b := range frame.Boxes {
		switch b.Kind {
		case RowBox:
			wf("  <rect data-row=\"%s\" x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"none\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"4 2\"/>\n",
				escAttr(b.ID), b.X, b.Y, b.W, b.H, svgColor(o.RowStroke))
		case ElementBox:
			wf("  <g data-element=\"%s\">\n", escAttr(b.ID))
			wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\" stroke=\"%s\" stroke-width=\"1\"/>\n",
				b.X+2, b.Y+2, b.W-4, b.H-4, svgColor(o.ElementFill), svgColor(o.ElementStroke))
			wf("    <text x=\"%g\" y=\"%g\" font-family=\"Helvetica, Arial, sans-serif\" font-size=\"10\" fill=\"%s\">%s</text>\n",
				b.X+8, b.Y+18, svgColor(o.LabelColor), escText(b.Label))
			wf("  </g>\n")
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return nil, fmt.Errorf("build svg: %w", werr)
	}
	return buf.Bytes(), nil
}

// WireframeSVG writes the wireframe of p as an SVG file.
func WireframeSVG(p *domain.PageData, outPath string, opt Options) error {
	if p == nil {
		return fmt.Errorf("page is nil")
	}
	data, err := RenderSVG(p, opt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func svgColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func escAttr(s string) string {
	// naive escaping sufficient for ids
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, "&quot;"...)
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '\n':
			out = append(out, ' ')
		case '\r':
			// skip
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
