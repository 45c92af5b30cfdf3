package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pagebuilder/internal/domain"
)

func samplePage(name string) domain.PageData {
	return domain.PageData{
		Name: name,
		Sections: []*domain.Section{
			{ID: "r1", Row: 1, Elements: []*domain.Element{
				{ID: "e1", Column: 1, ColumnSpan: 12, Type: domain.ElementPrimitive,
					Module:     &domain.ModuleRef{Name: "Markdown", LocalPath: "@scom/scom-markdown"},
					Properties: map[string]any{"content": "hi"}},
			}},
		},
	}
}

func TestInitSiteCreatesStructureAndManifest(t *testing.T) {
	root := t.TempDir()
	h, err := InitSite(root, samplePage("Home"))
	if err != nil {
		t.Fatalf("InitSite error: %v", err)
	}
	b, err := os.ReadFile(h.ManifestPath)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var got domain.PageData
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if got.Name != "Home" || len(got.Sections) != 1 {
		t.Fatalf("manifest mismatch: %+v", got)
	}
	for _, d := range []string{"assets", "exports", BackupsDirName} {
		p := filepath.Join(root, d)
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", p)
		}
	}
	if _, err := InitSite("  ", domain.PageData{}); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestSaveCreatesTimestampedBackup(t *testing.T) {
	root := t.TempDir()
	h, err := InitSite(root, samplePage("Backup"))
	if err != nil {
		t.Fatalf("InitSite error: %v", err)
	}
	h.Page.Title = "changed"
	if err := Save(h); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	baks, err := Backups(root)
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	if len(baks) == 0 {
		t.Fatalf("expected at least one backup file, found 0")
	}
	if !strings.HasPrefix(filepath.Base(baks[0]), ManifestFileName+".") {
		t.Fatalf("unexpected backup name %s", baks[0])
	}
}

func TestSaveRejectsInvalidPage(t *testing.T) {
	root := t.TempDir()
	h, err := InitSite(root, samplePage("Valid"))
	if err != nil {
		t.Fatalf("InitSite error: %v", err)
	}
	before, _ := os.ReadFile(h.ManifestPath)
	h.Page.Sections[0].Elements[0].ColumnSpan = 13
	if err := Save(h); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
	after, _ := os.ReadFile(h.ManifestPath)
	if string(before) != string(after) {
		t.Fatalf("invalid save must not touch the manifest")
	}
}

func TestSaveRenumbersRows(t *testing.T) {
	root := t.TempDir()
	p := samplePage("Rows")
	p.Sections = append(p.Sections, &domain.Section{ID: "r2", Row: 9})
	p.Sections[0].Row = 4
	h, err := InitSite(root, p)
	if err != nil {
		t.Fatalf("InitSite error: %v", err)
	}
	opened, err := Open(h.Root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	var rows []int
	for _, s := range opened.Page.Sections {
		rows = append(rows, s.Row)
	}
	if d := cmp.Diff([]int{1, 2}, rows); d != "" {
		t.Fatalf("rows (-want +got):\n%s", d)
	}
	if opened.Page.Sections[1].Elements == nil {
		t.Fatalf("empty row should load with an empty element list")
	}
}

func TestOpenFallsBackToLatestBackupOnCorruption(t *testing.T) {
	root := t.TempDir()
	h, err := InitSite(root, samplePage("From Backup"))
	if err != nil {
		t.Fatalf("InitSite error: %v", err)
	}
	h.Page.Title = "touch"
	if err := Save(h); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(h.ManifestPath, []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	opened, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if opened.Page.Name != "From Backup" {
		t.Fatalf("opened page name mismatch: got %q", opened.Page.Name)
	}
}

func TestOpenMissingSiteFails(t *testing.T) {
	if _, err := Open(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestSaveAsMovesHandle(t *testing.T) {
	h, err := InitSite(t.TempDir(), samplePage("Copy"))
	if err != nil {
		t.Fatalf("InitSite error: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "copy")
	if err := SaveAs(h, dst); err != nil {
		t.Fatalf("SaveAs error: %v", err)
	}
	if h.Root != dst || h.ManifestPath != filepath.Join(dst, ManifestFileName) {
		t.Fatalf("handle not updated: %+v", h)
	}
	opened, err := Open(dst)
	if err != nil || opened.Page.Name != "Copy" {
		t.Fatalf("open copy: %v", err)
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	root := t.TempDir()
	h, err := InitSite(root, samplePage("Crash Snapshot"))
	if err != nil {
		t.Fatalf("InitSite error: %v", err)
	}
	// snapshots skip validation
	h.Page.Sections[0].Elements[0].Column = 0

	path, err := AutosaveCrashSnapshot(h)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got domain.PageData
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.Name != "Crash Snapshot" {
		t.Fatalf("snapshot content mismatch: got %q", got.Name)
	}
}
