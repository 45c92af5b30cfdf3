/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pagebuilder/internal/domain"
	applog "pagebuilder/internal/log"
)

const (
	ManifestFileName = "page.json"
	BackupsDirName   = "backups"
	CrashDirName     = "crash"

	backupStamp = "20060102-150405.000"
)

// Standard subfolders of a site folder.
var standardSubDirs = []string{
	"assets",
	"exports",
	BackupsDirName,
}

// SiteHandle keeps track of a site folder loaded/saved from disk.
// Root is the directory containing page.json; Page is the in-memory document.
type SiteHandle struct {
	Root         string
	ManifestPath string
	Page         domain.PageData
}

// InitSite creates a site folder at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the manifest transactionally.
func InitSite(root string, page domain.PageData) (*SiteHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	if page.Sections == nil {
		page.Sections = []*domain.Section{}
	}
	h := &SiteHandle{
		Root:         root,
		ManifestPath: filepath.Join(root, ManifestFileName),
		Page:         page,
	}
	if err := Save(h); err != nil {
		return nil, err
	}
	return h, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create site root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads a site from root. When page.json cannot be read or parsed,
// the latest backup is used instead.
func Open(root string) (*SiteHandle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	mpath := filepath.Join(root, ManifestFileName)
	b, err := os.ReadFile(mpath)
	if err == nil {
		var p domain.PageData
		if err = json.Unmarshal(b, &p); err == nil {
			normalize(&p)
			return &SiteHandle{Root: root, ManifestPath: mpath, Page: p}, nil
		}
		err = fmt.Errorf("parse manifest: %w", err)
	} else {
		err = fmt.Errorf("open manifest: %w", err)
	}
	l.Warn("manifest unreadable, trying backups", slog.Any("err", err))
	p, berr := openFromLatestBackup(root)
	if berr != nil {
		return nil, fmt.Errorf("%w; backup attempt: %v", err, berr)
	}
	return &SiteHandle{Root: root, ManifestPath: mpath, Page: *p}, nil
}

// Save writes h.Page to disk with transactional semantics and a timestamped
// backup of the previous manifest (if present). The document is validated
// against the page schema first; an invalid page leaves the disk untouched.
func Save(h *SiteHandle) error {
	if h == nil {
		return errors.New("nil SiteHandle")
	}
	if h.Root == "" || h.ManifestPath == "" {
		return errors.New("invalid SiteHandle: missing paths")
	}
	data, err := marshalPage(&h.Page)
	if err != nil {
		return err
	}
	if err := Validate(data); err != nil {
		return err
	}

	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(h.ManifestPath); statErr == nil {
		bname := fmt.Sprintf("%s.%s.bak", ManifestFileName, time.Now().Format(backupStamp))
		if cerr := copyFile(h.ManifestPath, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current manifest: %w", cerr)
		}
	}
	return replaceFile(h.ManifestPath, data)
}

// SaveAs writes the manifest into a new site folder and updates the handle.
func SaveAs(h *SiteHandle, newRoot string) error {
	if h == nil {
		return errors.New("nil SiteHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	h.Root = newRoot
	h.ManifestPath = filepath.Join(newRoot, ManifestFileName)
	return Save(h)
}

// AutosaveCrashSnapshot writes the in-memory page next to the manifest under
// backups/crash without validation, so that even a broken document survives.
func AutosaveCrashSnapshot(h *SiteHandle) (string, error) {
	if h == nil || h.Root == "" {
		return "", errors.New("invalid SiteHandle")
	}
	data, err := marshalPage(&h.Page)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(h.Root, BackupsDirName, CrashDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure crash dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s.%s.crash", ManifestFileName, time.Now().Format(backupStamp)))
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// Backups lists the manifest backups of a site, oldest first.
func Backups(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func marshalPage(p *domain.PageData) ([]byte, error) {
	normalize(p)
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// normalize fills the nil slices the page format requires to be arrays
// and makes row numbers dense.
func normalize(p *domain.PageData) {
	if p.Sections == nil {
		p.Sections = []*domain.Section{}
	}
	kept := p.Sections[:0]
	for _, s := range p.Sections {
		if s == nil {
			continue
		}
		if s.Elements == nil {
			s.Elements = []*domain.Element{}
		}
		kept = append(kept, s)
	}
	p.Sections = kept
	domain.Renumber(p.Sections)
}

// replaceFile writes to a temp file in the same directory, then renames it over path.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", base, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp manifest: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace manifest: %w", rerr)
	}
	return nil
}

// writeFileSync writes data to a file and flushes it to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup walks the backups newest first and returns the first that parses.
func openFromLatestBackup(root string) (*domain.PageData, error) {
	candidates, err := Backups(root)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	var errs []error
	for i := len(candidates) - 1; i >= 0; i-- {
		b, err := os.ReadFile(candidates[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("read backup: %w", err))
			continue
		}
		var p domain.PageData
		if err := json.Unmarshal(b, &p); err != nil {
			errs = append(errs, fmt.Errorf("parse backup %s: %w", filepath.Base(candidates[i]), err))
			continue
		}
		normalize(&p)
		return &p, nil
	}
	return nil, errors.Join(errs...)
}
