package drag

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pagebuilder/internal/command"
	"pagebuilder/internal/geom"
	"pagebuilder/internal/undo"
)

type row string

func (r row) Key() string { return string(r) }

// fixture lays out rows 100px high stacked from y=0.
type fixture struct {
	rows []row
	list command.List[row]
	h    *undo.History
	c    *Controller
}

func newFixture(t *testing.T, validate Validator) *fixture {
	t.Helper()
	f := &fixture{rows: []row{"r1", "r2", "r3"}, h: undo.NewHistory(undo.Config{})}
	f.list = command.SliceList(&f.rows, nil)
	f.c = New(Options{
		Axis:     Vertical,
		Reach:    10,
		Validate: validate,
		Exec:     f.h,
		Build: func(tg Target, s Slot) (undo.Command, error) {
			return command.NewMoveToSlot(f.list, tg.Index, f.list, s.Index)
		},
	})
	return f
}

func (f *fixture) candidates() []Candidate {
	out := make([]Candidate, len(f.rows))
	for i, r := range f.rows {
		out[i] = Candidate{Key: string(r), Parent: "page", Index: i, Bounds: geom.R(0, float64(i)*100, 800, 100)}
	}
	return out
}

func (f *fixture) begin(t *testing.T, i int, p geom.Pt) {
	t.Helper()
	tg := Target{Key: string(f.rows[i]), Parent: "page", Index: i, Bounds: geom.R(0, float64(i)*100, 800, 100)}
	if err := f.c.Begin(tg, p, f.candidates()); err != nil {
		t.Fatalf("begin: %v", err)
	}
}

func order(rows []row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = string(r)
	}
	return out
}

func TestDropOnLowerHalfPlacesAfter(t *testing.T) {
	f := newFixture(t, nil)
	f.begin(t, 0, geom.Pt{X: 10, Y: 50})
	f.c.Move(geom.Pt{X: 10, Y: 180})
	res, err := f.c.Release(geom.Pt{X: 10, Y: 280})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.State != Dropped || res.Command == nil || res.Slot.Index != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if d := cmp.Diff([]string{"r2", "r3", "r1"}, order(f.rows)); d != "" {
		t.Fatalf("order (-want +got):\n%s", d)
	}
	if f.h.Len() != 1 {
		t.Fatalf("expected one history entry, got %d", f.h.Len())
	}
	_, _ = f.h.Undo()
	if d := cmp.Diff([]string{"r1", "r2", "r3"}, order(f.rows)); d != "" {
		t.Fatalf("undo order (-want +got):\n%s", d)
	}
}

func TestReleaseOutsideCancels(t *testing.T) {
	f := newFixture(t, nil)
	f.begin(t, 0, geom.Pt{X: 10, Y: 50})
	f.c.Move(geom.Pt{X: 10, Y: 250})
	res, err := f.c.Release(geom.Pt{X: 10, Y: 900})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.State != Cancelled || res.Command != nil {
		t.Fatalf("expected cancel, got %+v", res)
	}
	if d := cmp.Diff([]string{"r1", "r2", "r3"}, order(f.rows)); d != "" {
		t.Fatalf("order changed (-want +got):\n%s", d)
	}
	if f.h.Len() != 0 {
		t.Fatalf("history must be untouched")
	}
}

func TestCancelDiscardsSession(t *testing.T) {
	f := newFixture(t, nil)
	f.begin(t, 1, geom.Pt{X: 10, Y: 150})
	f.c.Move(geom.Pt{X: 10, Y: 10})
	f.c.Cancel()
	if f.c.State() != Cancelled || f.c.Session() != nil || f.c.View().HasMarker {
		t.Fatalf("cancel left state behind: %v %+v", f.c.State(), f.c.View())
	}
	if _, err := f.c.Release(geom.Pt{}); !errors.Is(err, ErrNotDragging) {
		t.Fatalf("expected ErrNotDragging, got %v", err)
	}
	if f.h.Len() != 0 {
		t.Fatalf("history must be untouched")
	}
}

func TestBeginWhileActiveIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.begin(t, 0, geom.Pt{X: 10, Y: 10})
	err := f.c.Begin(Target{Key: "r2", Parent: "page", Index: 1}, geom.Pt{}, f.candidates())
	if !errors.Is(err, ErrActive) {
		t.Fatalf("expected ErrActive, got %v", err)
	}
	if s := f.c.Session(); s == nil || s.Target.Key != "r1" {
		t.Fatalf("original session must survive: %+v", s)
	}
}

func TestMoveIsIdempotentAndPure(t *testing.T) {
	f := newFixture(t, nil)
	f.begin(t, 2, geom.Pt{X: 10, Y: 250})
	p := geom.Pt{X: 400, Y: 30}
	s1, ok1 := f.c.Move(p)
	v1 := f.c.View()
	s2, ok2 := f.c.Move(p)
	if !ok1 || !ok2 || s1 != s2 || f.c.View() != v1 {
		t.Fatalf("move not idempotent: %v/%v %v/%v", s1, ok1, s2, ok2)
	}
	if s1.Index != 0 {
		t.Fatalf("upper half of r1 should give slot 0, got %d", s1.Index)
	}
	if v1.Marker.Y != -1 || v1.Marker.H != 2 {
		t.Fatalf("marker should sit on r1's top edge: %+v", v1.Marker)
	}
	if v1.Ghost.Y != -20 {
		t.Fatalf("ghost should follow the pointer: %+v", v1.Ghost)
	}
	if d := cmp.Diff([]string{"r1", "r2", "r3"}, order(f.rows)); d != "" {
		t.Fatalf("move must not mutate (-want +got):\n%s", d)
	}
}

func TestDropOnOriginIsElided(t *testing.T) {
	f := newFixture(t, nil)
	f.begin(t, 1, geom.Pt{X: 10, Y: 150})
	res, err := f.c.Release(geom.Pt{X: 10, Y: 120})
	if err != nil || res.State != Dropped || res.Command != nil {
		t.Fatalf("expected elided drop, got %+v err=%v", res, err)
	}
	if f.h.Len() != 0 {
		t.Fatalf("elided drop must not be recorded")
	}
}

func TestReachAndValidator(t *testing.T) {
	refuseEnd := func(_ Target, s Slot) bool { return s.Index != 3 }
	f := newFixture(t, refuseEnd)
	f.begin(t, 0, geom.Pt{X: 10, Y: 50})
	if _, ok := f.c.Move(geom.Pt{X: 10, Y: 305}); ok {
		t.Fatalf("slot 3 is refused and must not be hovered")
	}
	if _, ok := f.c.Move(geom.Pt{X: 10, Y: 320}); ok {
		t.Fatalf("pointer beyond reach must not hover")
	}
	if s, ok := f.c.Move(geom.Pt{X: 10, Y: 205}); !ok || s.Index != 2 {
		t.Fatalf("expected slot 2, got %v ok=%v", s, ok)
	}
	res, _ := f.c.Release(geom.Pt{X: 10, Y: 305})
	if res.State != Cancelled || f.h.Len() != 0 {
		t.Fatalf("release on refused slot must cancel: %+v", res)
	}
}

func TestFillCandidate(t *testing.T) {
	var empty []row
	src := []row{"a"}
	h := undo.NewHistory(undo.Config{})
	lists := map[string]command.List[row]{
		"src":   command.SliceList(&src, nil),
		"empty": command.SliceList(&empty, nil),
	}
	c := New(Options{Axis: Horizontal, Exec: h, Build: func(tg Target, s Slot) (undo.Command, error) {
		return command.NewMoveToSlot(lists[tg.Parent], tg.Index, lists[s.Parent], s.Index)
	}})
	_ = c.Begin(Target{Key: "a", Parent: "src", Index: 0, Bounds: geom.R(0, 0, 100, 50)}, geom.Pt{X: 5, Y: 5},
		[]Candidate{
			{Key: "a", Parent: "src", Index: 0, Bounds: geom.R(0, 0, 100, 50)},
			{Parent: "empty", Index: 0, Bounds: geom.R(0, 100, 600, 50), Fill: true},
		})
	res, err := c.Release(geom.Pt{X: 580, Y: 120})
	if err != nil || res.State != Dropped {
		t.Fatalf("release: %+v %v", res, err)
	}
	if len(src) != 0 || len(empty) != 1 || empty[0] != "a" {
		t.Fatalf("element not moved into the empty parent: src=%v empty=%v", src, empty)
	}
}

type failingExec struct{}

func (failingExec) Execute(undo.Command) error { return command.ErrStaleIndex }

func TestBuildFailureCancels(t *testing.T) {
	c := New(Options{Axis: Vertical, Exec: failingExec{}, Build: func(Target, Slot) (undo.Command, error) {
		return command.NewGroup("noop"), nil
	}})
	_ = c.Begin(Target{Key: "a", Parent: "p", Index: 0, Bounds: geom.R(0, 0, 10, 10)}, geom.Pt{}, []Candidate{
		{Key: "a", Parent: "p", Index: 0, Bounds: geom.R(0, 0, 10, 10)},
		{Key: "b", Parent: "p", Index: 1, Bounds: geom.R(0, 10, 10, 10)},
	})
	res, err := c.Release(geom.Pt{X: 5, Y: 19})
	if !errors.Is(err, command.ErrStaleIndex) || res.State != Cancelled {
		t.Fatalf("expected cancelled with stale index, got %+v %v", res, err)
	}
	if c.Session() != nil {
		t.Fatalf("session must be discarded")
	}
}
