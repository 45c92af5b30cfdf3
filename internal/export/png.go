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
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"pagebuilder/internal/domain"
)

// RenderPNG rasterizes the wireframe of p at scale pixels per viewport pixel (1 when <= 0).
func RenderPNG(p *domain.PageData, opt Options, scale float64) *image.RGBA {
	if scale <= 0 {
		scale = 1
	}
	wf := Plan(p, opt)
	o := wf.Options
	px := func(v float64) int { return int(math.Round(v * scale)) }

	img := image.NewRGBA(image.Rect(0, 0, px(wf.Width), px(wf.Height)))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	if wf.Title != "" {
		drawLabel(img, px(o.Padding), px(o.Padding)+13, wf.Title, o.LabelColor, img.Bounds())
	}
	for _, b := range wf.Boxes {
		x0, y0 := px(b.X), px(b.Y)
		x1, y1 := px(b.X+b.W)-1, px(b.Y+b.H)-1
		switch b.Kind {
		case RowBox:
			strokeRect(img, x0, y0, x1, y1, o.RowStroke)
		case ElementBox:
			fillRect(img, x0+2, y0+2, x1-2, y1-2, o.ElementFill)
			strokeRect(img, x0+2, y0+2, x1-2, y1-2, o.ElementStroke)
			clip := image.Rect(x0+3, y0+3, x1-2, y1-2)
			drawLabel(img, x0+8, y0+18, b.Label, o.LabelColor, clip)
		}
	}
	return img
}

// WireframePNG writes the wireframe of p as a PNG file.
func WireframePNG(p *domain.PageData, outPath string, opt Options, scale float64) error {
	if p == nil {
		return fmt.Errorf("page is nil")
	}
	img := RenderPNG(p, opt, scale)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

// drawLabel draws s with the 7x13 bitmap face, baseline at (x, y), clipped to clip.
func drawLabel(img *image.RGBA, x, y int, s string, col color.RGBA, clip image.Rectangle) {
	dst := img.SubImage(clip.Intersect(img.Bounds())).(*image.RGBA)
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// strokeRect draws a 1px axis-aligned rectangle border inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y0, col)
		img.SetRGBA(x, y1, col)
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x0, y, col)
		img.SetRGBA(x1, y, col)
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}
