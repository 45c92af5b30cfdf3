package editor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/modules"
	"pagebuilder/internal/page"
)

type stubResolver struct {
	err   error
	calls int
}

func (r *stubResolver) Resolve(_ context.Context, ref domain.ModuleRef) (*modules.Module, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &modules.Module{Ref: ref, Source: "stub"}, nil
}

func sample() *domain.PageData {
	return &domain.PageData{
		Name: "home",
		Sections: []*domain.Section{
			{ID: "R1", Row: 7, Elements: []*domain.Element{{ID: "A", Column: 1, ColumnSpan: 12, Type: domain.ElementPrimitive}}},
			{ID: "R2"},
			{ID: "R3", Elements: []*domain.Element{{ID: "B", Column: 1, ColumnSpan: 4, Type: domain.ElementPrimitive, Properties: map[string]any{"x": "y"}}}},
		},
		Footer: &domain.Footer{Image: "f.png"},
	}
}

func TestLoadCopiesAndRenumbers(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	in := sample()
	if err := s.Load(in); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Page() == in || s.Page().Sections[0] == in.Sections[0] {
		t.Fatalf("session must own a copy of the loaded data")
	}
	for i, sec := range s.Page().Sections {
		if sec.Row != i+1 {
			t.Fatalf("row %s not renumbered: %d", sec.ID, sec.Row)
		}
	}
	if s.History().Len() != 0 {
		t.Fatalf("history should be empty after load")
	}
	if err := s.Load(nil); err != nil || s.Page().Sections == nil {
		t.Fatalf("nil data should load as an empty page: %v", err)
	}
}

func TestDataFiltersEmptyRows(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	_ = s.Load(sample())
	out := s.Data()
	var got []string
	for _, sec := range out.Sections {
		got = append(got, sec.ID)
	}
	if d := cmp.Diff([]string{"R1", "R3"}, got); d != "" {
		t.Fatalf("sections (-want +got):\n%s", d)
	}
	if out.Sections[1].Row != 2 {
		t.Fatalf("saved rows should be dense, got %d", out.Sections[1].Row)
	}
	if len(s.Page().Sections) != 3 {
		t.Fatalf("Data must not modify the live page")
	}
}

func TestLoadClearsHistory(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	_ = s.Load(sample())
	if _, err := s.Rows().MoveRowDown("R1"); err != nil {
		t.Fatalf("move: %v", err)
	}
	_ = s.Load(sample())
	if ok, _ := s.Undo(); ok {
		t.Fatalf("undo after load must be a no-op")
	}
}

func TestAddElementEventAddsRow(t *testing.T) {
	bus := events.NewBus()
	res := &stubResolver{}
	s := New(Options{Bus: bus, Resolver: res})
	rec := &events.Recorder{}
	rec.Record(bus, events.SectionsUpdated)
	bus.Publish(context.Background(), events.AddElement, page.ElementConfig{Module: &domain.ModuleRef{Name: "Markdown", Category: domain.Category("components"), LocalPath: "md"}})
	if len(s.Page().Sections) != 1 || s.Page().Sections[0].Elements[0].ColumnSpan != 12 {
		t.Fatalf("expected one full-width row, got %+v", s.Page().Sections)
	}
	if res.calls != 1 || rec.Count(events.SectionsUpdated) != 1 {
		t.Fatalf("resolver calls=%d updates=%d", res.calls, rec.Count(events.SectionsUpdated))
	}
	if ok, _ := s.Undo(); !ok || len(s.Page().Sections) != 0 {
		t.Fatalf("undo should remove the row")
	}

	s.Close()
	bus.Publish(context.Background(), events.AddElement, page.ElementConfig{Module: &domain.ModuleRef{Name: "x"}})
	if len(s.Page().Sections) != 0 || bus.Subscribers(events.AddElement) != 0 {
		t.Fatalf("closed session must not react to events")
	}
}

func TestAddModuleResolutionFailureLeavesModel(t *testing.T) {
	boom := errors.New("gateway down")
	s := New(Options{Resolver: &stubResolver{err: boom}})
	defer s.Close()
	_ = s.Load(sample())
	before := s.Page().Clone()
	if _, err := s.AddModule(context.Background(), page.ElementConfig{Module: &domain.ModuleRef{Name: "m", IPFSCID: "x"}}); !errors.Is(err, boom) {
		t.Fatalf("expected resolution error, got %v", err)
	}
	if d := cmp.Diff(before, s.Page()); d != "" {
		t.Fatalf("model changed (-want +got):\n%s", d)
	}
	if s.History().Len() != 0 {
		t.Fatalf("nothing should be recorded")
	}
}

func TestUpdateFooterUndoable(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	_ = s.Load(sample())
	rec := &events.Recorder{}
	rec.Record(s.Bus(), events.FooterUpdated)
	if err := s.UpdateFooter(domain.Footer{Image: "new.png"}); err != nil {
		t.Fatalf("footer: %v", err)
	}
	if s.Page().Footer.Image != "new.png" || rec.Count(events.FooterUpdated) != 1 {
		t.Fatalf("footer not applied")
	}
	_, _ = s.Undo()
	if s.Page().Footer.Image != "f.png" {
		t.Fatalf("undo footer: %+v", s.Page().Footer)
	}
	_, _ = s.Redo()
	if s.Page().Footer.Image != "new.png" {
		t.Fatalf("redo footer: %+v", s.Page().Footer)
	}
}

func TestApplyPatch(t *testing.T) {
	s := New(Options{})
	defer s.Close()
	_ = s.Load(sample())
	if err := s.ApplyPatch("R2", map[string]any{"backgroundColor": "#123456", "backgroundImageUrl": "bg.png"}); err != nil {
		t.Fatalf("row patch: %v", err)
	}
	r2, _ := s.Rows().Section("R2")
	if r2.BackgroundColor != "#123456" || r2.Image != "bg.png" {
		t.Fatalf("row settings not applied: %+v", r2)
	}
	if err := s.ApplyPatch("B", map[string]any{"x": nil, "title": "T"}); err != nil {
		t.Fatalf("element patch: %v", err)
	}
	loc, _ := s.Page().FindElement("B")
	if d := cmp.Diff(map[string]any{"title": "T"}, loc.Element.Properties); d != "" {
		t.Fatalf("properties (-want +got):\n%s", d)
	}
	if err := s.ApplyPatch("missing", map[string]any{"a": 1}); !errors.Is(err, page.ErrElementNotFound) {
		t.Fatalf("expected ErrElementNotFound, got %v", err)
	}
}

func TestMutationsAfterClose(t *testing.T) {
	s := New(Options{})
	s.Close()
	s.Close()
	if err := s.Load(sample()); !errors.Is(err, ErrClosed) {
		t.Fatalf("load: %v", err)
	}
	if _, err := s.Undo(); !errors.Is(err, ErrClosed) {
		t.Fatalf("undo: %v", err)
	}
	if err := s.UpdateFooter(domain.Footer{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("footer: %v", err)
	}
	if _, err := s.AddModule(context.Background(), page.ElementConfig{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("add module: %v", err)
	}
}

func TestSessionLogsCarrySiteAndSession(t *testing.T) {
	var buf bytes.Buffer
	applog.Init(applog.Options{Level: "debug", Output: &buf})
	t.Cleanup(func() { applog.Init(applog.Options{Output: io.Discard}) })

	s := New(Options{LogContext: applog.ContextWithSite(context.Background(), "/sites/home")})
	defer s.Close()
	if err := s.Load(sample()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := s.Rows().DeleteRow("R2"); err != nil {
		t.Fatalf("delete row: %v", err)
	}

	var loaded, applied string
	for _, line := range strings.Split(buf.String(), "\n") {
		switch {
		case strings.Contains(line, "page loaded"):
			loaded = line
		case strings.Contains(line, "command applied"):
			applied = line
		}
	}
	for _, line := range []string{loaded, applied} {
		if !strings.Contains(line, "site=/sites/home") || !strings.Contains(line, "session="+s.ID()) {
			t.Fatalf("record without site/session tags: %q\nall:\n%s", line, buf.String())
		}
	}
}
