/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package modpack bundles a site's local module library into a zip archive
// and installs such archives into another site, so pages that reference
// local modules can be moved between machines.
package modpack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "pagebuilder/internal/log"
)

// ManifestName is the human readable index placed at the archive root.
const ManifestName = "modpack.manifest.txt"

// Export zips every file below libDir into destZip. Entry names are relative
// to libDir with forward slashes. A missing libDir yields an archive holding
// only the manifest. It returns the number of module files written.
func Export(libDir, destZip string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("modpack"), "export").With(slog.String("lib", libDir))
	if strings.TrimSpace(libDir) == "" {
		return 0, errors.New("library directory is required")
	}
	if strings.TrimSpace(destZip) == "" {
		return 0, errors.New("destination zip is required")
	}
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	// Windows will not truncate an open target
	_ = os.Remove(destZip)

	zf, err := os.Create(destZip)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	zw := zip.NewWriter(zf)

	added, err := writePack(zw, libDir)
	if cerr := zw.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("finish zip: %w", cerr)
	}
	if cerr := zf.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close zip: %w", cerr)
	}
	if err != nil {
		l.Error("zip build failed", slog.Any("err", err))
		_ = os.Remove(destZip)
		return 0, err
	}
	l.Info("module pack exported", slog.Int("files", added), slog.String("zip", destZip))
	return added, nil
}

func writePack(zw *zip.Writer, libDir string) (int, error) {
	manifest := fmt.Sprintf("Page Builder Module Pack\nCreated: %s\nLibrary: %s\n\nEntries are paths relative to the module root.\n",
		time.Now().Format(time.RFC3339), filepath.Base(libDir))
	w, err := zw.Create(ManifestName)
	if err != nil {
		return 0, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := w.Write([]byte(manifest)); err != nil {
		return 0, fmt.Errorf("write manifest: %w", err)
	}
	if _, err := os.Stat(libDir); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	added := 0
	err = filepath.WalkDir(libDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(libDir, path)
		if err != nil {
			return err
		}
		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(fw, f); err != nil {
			return err
		}
		added++
		return nil
	})
	if err != nil {
		return added, fmt.Errorf("build zip: %w", err)
	}
	return added, nil
}

// Install extracts packZip below libDir. Existing files are kept and the
// archive copy skipped. Entries that would land outside libDir are rejected.
// It returns the number of files written.
func Install(libDir, packZip string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("modpack"), "install").With(slog.String("lib", libDir))
	if strings.TrimSpace(libDir) == "" {
		return 0, errors.New("library directory is required")
	}
	if strings.TrimSpace(packZip) == "" {
		return 0, errors.New("pack zip is required")
	}
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		return 0, fmt.Errorf("ensure library dir: %w", err)
	}
	r, err := zip.OpenReader(packZip)
	if err != nil {
		return 0, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	installed := 0
	for _, f := range r.File {
		if f.Name == ManifestName {
			continue
		}
		target, err := targetPath(libDir, f.Name)
		if err != nil {
			return installed, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return installed, err
			}
			continue
		}
		if _, err := os.Stat(target); err == nil {
			l.Warn("skip existing file", slog.String("path", target))
			continue
		}
		if err := extract(f, target); err != nil {
			return installed, err
		}
		installed++
	}
	l.Info("module pack installed", slog.Int("files", installed))
	return installed, nil
}

// targetPath maps an archive entry below libDir.
func targetPath(libDir, name string) (string, error) {
	clean := filepath.FromSlash(strings.TrimPrefix(name, "/"))
	target := filepath.Join(libDir, clean)
	rel, err := filepath.Rel(libDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("modpack: entry %q escapes the library", name)
	}
	return target, nil
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
