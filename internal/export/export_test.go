package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pagebuilder/internal/domain"
)

func samplePage() *domain.PageData {
	return &domain.PageData{
		Name: "landing",
		Sections: []*domain.Section{
			{ID: "r1", Row: 1, Elements: []*domain.Element{
				{ID: "hero", Column: 1, ColumnSpan: 12, Type: domain.ElementPrimitive, Module: &domain.ModuleRef{Name: "Banner"}},
			}},
			{ID: "r2", Row: 2, Elements: []*domain.Element{
				{ID: "a", Column: 1, ColumnSpan: 6, Type: domain.ElementPrimitive, Module: &domain.ModuleRef{Name: "Markdown"}},
				{ID: "b", Column: 7, ColumnSpan: 6, Type: domain.ElementComposite, InvisibleOn: "mobile"},
			}},
		},
	}
}

func TestPlanDesktopColumns(t *testing.T) {
	wf := Plan(samplePage(), Options{Viewport: Viewport{Name: "desktop", Width: 1224}, Padding: 12, RowHeight: 100, Gutter: 10, Title: " "})
	// 1200px inner width gives 100px columns.
	var got []Box
	for _, b := range wf.Boxes {
		if b.Kind == ElementBox {
			got = append(got, Box{ID: b.ID, X: b.X, W: b.W})
		}
	}
	want := []Box{{ID: "hero", X: 12, W: 1200}, {ID: "a", X: 12, W: 600}, {ID: "b", X: 612, W: 600}}
	if d := cmp.Diff(want, got); d != "" {
		t.Fatalf("element boxes (-want +got):\n%s", d)
	}
	if wf.Boxes[3].Label != "Markdown" || wf.Boxes[4].Label != "composite" {
		t.Fatalf("labels: %q %q", wf.Boxes[3].Label, wf.Boxes[4].Label)
	}
}

func TestPlanMobileStacksAndHides(t *testing.T) {
	p := samplePage()
	p.Sections[1].Elements = append(p.Sections[1].Elements,
		&domain.Element{ID: "c", Column: 1, ColumnSpan: 1, Type: domain.ElementPrimitive, VisibleOn: "mobile, tablet"})
	wf := Plan(p, Options{Viewport: Mobile, Padding: 10, RowHeight: 50, Gutter: 5, Title: "t"})
	var ids []string
	var ys []float64
	for _, b := range wf.Boxes {
		if b.Kind == ElementBox {
			ids = append(ids, b.ID)
			ys = append(ys, b.Y)
			if b.W != Mobile.Width-20 {
				t.Fatalf("stacked element %s should be full width, got %g", b.ID, b.W)
			}
		}
	}
	if d := cmp.Diff([]string{"hero", "a", "c"}, ids); d != "" {
		t.Fatalf("visible elements (-want +got):\n%s", d)
	}
	// title 32, hero row 50 + gutter, then a and c stacked
	if d := cmp.Diff([]float64{42, 97, 152}, ys); d != "" {
		t.Fatalf("y positions (-want +got):\n%s", d)
	}
	if wf.Height != 152+50+10 {
		t.Fatalf("height = %g", wf.Height)
	}
}

func TestVisibleOn(t *testing.T) {
	el := &domain.Element{VisibleOn: "desktop tablet", InvisibleOn: "tablet"}
	if !VisibleOn(el, "desktop") || VisibleOn(el, "tablet") || VisibleOn(el, "mobile") {
		t.Fatalf("unexpected visibility")
	}
	if !VisibleOn(&domain.Element{}, "anything") {
		t.Fatalf("empty rules mean visible everywhere")
	}
}

func TestWireframePDF_CreatesFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "exports", "wire.pdf")
	if err := WireframePDF(samplePage(), out, Options{}); err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF")) {
		t.Fatalf("not a pdf")
	}
	if err := WireframePDF(nil, out, Options{}); err == nil {
		t.Fatalf("expected error for nil page")
	}
}

func TestRenderPNGSize(t *testing.T) {
	img := RenderPNG(samplePage(), Options{Viewport: Tablet}, 2)
	wf := Plan(samplePage(), Options{Viewport: Tablet})
	if img.Bounds().Dx() != int(wf.Width*2) || img.Bounds().Dy() != int(wf.Height*2) {
		t.Fatalf("bounds %v for %gx%g", img.Bounds(), wf.Width, wf.Height)
	}
	// inside the hero box the fill color shows
	hero := wf.Boxes[1]
	c := img.RGBAAt(int(hero.X+hero.W/2)*2, int(hero.Y+hero.H-10)*2)
	if c != wf.Options.ElementFill {
		t.Fatalf("expected element fill, got %v", c)
	}
}

func TestRenderSVGEscapes(t *testing.T) {
	p := samplePage()
	p.Sections[0].Elements[0].Module.Name = "<Hero & Co>"
	b, err := RenderSVG(p, Options{})
	if err != nil {
		t.Fatalf("svg: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, "&lt;Hero &amp; Co&gt;") || strings.Contains(s, "<Hero") {
		t.Fatalf("label not escaped: %s", s)
	}
	if strings.Count(s, "data-element=") != 3 {
		t.Fatalf("expected 3 element groups")
	}
}

func TestBatchExport(t *testing.T) {
	dir := t.TempDir()
	files, err := BatchExport(samplePage(), BatchOptions{OutDir: dir, Formats: []string{"svg", "PNG"}, Viewports: []Viewport{Desktop, Mobile}})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	want := []string{
		filepath.Join(dir, "desktop", "landing.svg"),
		filepath.Join(dir, "desktop", "landing.png"),
		filepath.Join(dir, "mobile", "landing.svg"),
		filepath.Join(dir, "mobile", "landing.png"),
	}
	if d := cmp.Diff(want, files); d != "" {
		t.Fatalf("files (-want +got):\n%s", d)
	}
	for _, f := range files {
		if st, err := os.Stat(f); err != nil || st.Size() == 0 {
			t.Fatalf("missing output %s: %v", f, err)
		}
	}
	if _, err := BatchExport(samplePage(), BatchOptions{OutDir: dir, Formats: []string{"cbz"}}); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
