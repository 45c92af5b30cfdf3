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
	"image/color"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"

	"pagebuilder/internal/domain"
)

// WireframePDF writes the wireframe of p as a single-page PDF to outPath.
// The page size equals the wireframe size, one pixel per point.
func WireframePDF(p *domain.PageData, outPath string, opt Options) error {
	if p == nil {
		return fmt.Errorf("page is nil")
	}
	wf := Plan(p, opt)
	o := wf.Options

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: wf.Width, Ht: wf.Height},
	})
	pdf.SetTitle(fmt.Sprintf("%s (%s wireframe)", firstNonEmpty(wf.Title, "page"), o.Viewport.Name), true)
	pdf.SetAuthor("Page Builder", false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: wf.Width, Ht: wf.Height})

	// Built-in Helvetica keeps text vector without embedding
	if wf.Title != "" {
		pdf.SetFont("Helvetica", "B", 14)
		setTextColor(pdf, o.LabelColor)
		pdf.Text(o.Padding, o.Padding+16, wf.Title)
	}
	pdf.SetFont("Helvetica", "", 10)
	for _, b := range wf.Boxes {
		switch b.Kind {
		case RowBox:
			setDrawColor(pdf, o.RowStroke)
			pdf.SetLineWidth(0.5)
			pdf.SetDashPattern([]float64{4, 2}, 0)
			pdf.Rect(b.X, b.Y, b.W, b.H, "D")
			pdf.SetDashPattern([]float64{}, 0)
		case ElementBox:
			setDrawColor(pdf, o.ElementStroke)
			setFillColor(pdf, o.ElementFill)
			pdf.SetLineWidth(1)
			pdf.Rect(b.X+2, b.Y+2, b.W-4, b.H-4, "FD")
			setTextColor(pdf, o.LabelColor)
			pdf.ClipRect(b.X+2, b.Y+2, b.W-4, b.H-4, false)
			pdf.Text(b.X+8, b.Y+18, b.Label)
			pdf.ClipEnd()
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func setDrawColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
}

func setFillColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}

func setTextColor(pdf *gofpdf.Fpdf, c color.RGBA) {
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
}
