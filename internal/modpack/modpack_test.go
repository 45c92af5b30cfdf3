package modpack

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestExportAndInstall(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libs")
	writeFile(t, filepath.Join(lib, "scom-banner", "index.js"), "export default 1")
	writeFile(t, filepath.Join(lib, "scom-markdown", "index.js"), "export default 2")
	writeFile(t, filepath.Join(lib, "scom-markdown", "assets", "logo.svg"), "<svg/>")

	zipPath := filepath.Join(t.TempDir(), "out", "modules.zip")
	n, err := Export(lib, zipPath)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 3 {
		t.Fatalf("exported %d files, want 3", n)
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	_ = r.Close()
	sort.Strings(names)
	want := []string{ManifestName, "scom-banner/index.js", "scom-markdown/assets/logo.svg", "scom-markdown/index.js"}
	if d := cmp.Diff(want, names); d != "" {
		t.Fatalf("entries (-want +got):\n%s", d)
	}

	dst := filepath.Join(t.TempDir(), "libs")
	writeFile(t, filepath.Join(dst, "scom-banner", "index.js"), "local edit")
	installed, err := Install(dst, zipPath)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if installed != 2 {
		t.Fatalf("installed %d, want 2 (existing file skipped)", installed)
	}
	b, _ := os.ReadFile(filepath.Join(dst, "scom-banner", "index.js"))
	if string(b) != "local edit" {
		t.Fatalf("existing file was overwritten: %q", b)
	}
	if _, err := os.Stat(filepath.Join(dst, "scom-markdown", "assets", "logo.svg")); err != nil {
		t.Fatalf("nested file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, ManifestName)); !os.IsNotExist(err) {
		t.Fatalf("manifest must not be installed")
	}
}

func TestExportMissingLibraryWritesManifestOnly(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "empty.zip")
	n, err := Export(filepath.Join(t.TempDir(), "nope"), zipPath)
	if err != nil || n != 0 {
		t.Fatalf("Export = %d, %v", n, err)
	}
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()
	if len(r.File) != 1 || r.File[0].Name != ManifestName {
		t.Fatalf("expected manifest only, got %d entries", len(r.File))
	}
}

func TestInstallRejectsEscapingEntries(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("../outside.js")
	_, _ = w.Write([]byte("x"))
	_ = zw.Close()
	_ = f.Close()

	base := t.TempDir()
	if _, err := Install(filepath.Join(base, "libs"), zipPath); err == nil {
		t.Fatalf("expected error for escaping entry")
	}
	if _, err := os.Stat(filepath.Join(base, "outside.js")); !os.IsNotExist(err) {
		t.Fatalf("file written outside the library")
	}
}

func TestArgsRequired(t *testing.T) {
	if _, err := Export("", "x.zip"); err == nil {
		t.Fatalf("expected error for empty library")
	}
	if _, err := Install(t.TempDir(), ""); err == nil {
		t.Fatalf("expected error for empty pack")
	}
}
