/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"pagebuilder/internal/backend"
	"pagebuilder/internal/export"
	"pagebuilder/internal/modpack"
	"pagebuilder/internal/modules"
	"pagebuilder/internal/storage"
)

// remoteVersionKey stores the backend version the local page was last synced with.
const remoteVersionKey = "remote.version"

func (a *app) wireframe(dir, out, viewport string) error {
	h, err := a.open(dir)
	if err != nil {
		return err
	}
	opt := export.Options{Viewport: export.Desktop}
	if viewport != "" {
		vp, ok := export.ViewportByName(viewport)
		if !ok {
			return fmt.Errorf("unknown viewport %q (desktop, tablet, mobile)", viewport)
		}
		opt.Viewport = vp
	}
	switch strings.ToLower(filepath.Ext(out)) {
	case ".pdf":
		err = export.WireframePDF(&h.Page, out, opt)
	case ".png":
		err = export.WireframePNG(&h.Page, out, opt, 1)
	case ".svg":
		err = export.WireframeSVG(&h.Page, out, opt)
	default:
		return fmt.Errorf("unsupported output %q: use .pdf, .png or .svg", out)
	}
	if err != nil {
		return err
	}
	fmt.Println("Wrote", out)
	return nil
}

func (a *app) export(dir string, formats []string) error {
	h, err := a.open(dir)
	if err != nil {
		return err
	}
	files, err := export.BatchExport(&h.Page, export.BatchOptions{
		Formats: formats,
		OutDir:  filepath.Join(h.Root, "exports"),
		Scale:   1,
	})
	for _, f := range files {
		fmt.Println("Wrote", f)
	}
	return err
}

func (a *app) prefetch(ctx context.Context, dir string) error {
	h, err := a.open(dir)
	if err != nil {
		return err
	}
	refs := modules.PageRefs(&h.Page)
	if len(refs) == 0 {
		fmt.Println("The page uses no modules.")
		return nil
	}
	got, err := modules.Prefetch(ctx, a.resolver(h.Root), refs, 4)
	if err != nil {
		return err
	}
	for _, m := range got {
		a.log.Debug("module resolved", slog.String("module", m.Ref.Name), slog.String("source", m.Source))
	}
	fmt.Printf("Resolved %d modules\n", len(got))
	return nil
}

// libDir is the local module root of the site at root.
func (a *app) libDir(root string) string {
	lib := firstNonEmpty(a.cfg.Modules.RootDir, "libs")
	if filepath.IsAbs(lib) {
		return lib
	}
	return filepath.Join(root, lib)
}

func (a *app) modulePack(op, dir, zipPath string) error {
	abs, _ := filepath.Abs(dir)
	lib := a.libDir(abs)
	if op == "pack-modules" {
		n, err := modpack.Export(lib, zipPath)
		if err != nil {
			return err
		}
		fmt.Printf("Packed %d module files into %s\n", n, zipPath)
		return nil
	}
	n, err := modpack.Install(lib, zipPath)
	if err != nil {
		return err
	}
	fmt.Printf("Installed %d module files into %s\n", n, lib)
	return nil
}

// upload pushes page.json to the IPFS gateway and records the returned cid on the page.
func (a *app) upload(ctx context.Context, dir string) error {
	h, err := a.open(dir)
	if err != nil {
		return err
	}
	if a.token == "" {
		a.log.Warn("no upload token in keychain; the gateway may reject the request")
	}
	data, err := json.Marshal(&h.Page)
	if err != nil {
		return err
	}
	up := modules.NewUploader(a.cfg.Modules.UploadEndpoint, a.token, a.cfg.Modules.Timeout())
	cid, err := up.Upload(ctx, storage.ManifestFileName, data)
	if err != nil {
		return err
	}
	h.Page.CID = cid
	if err := storage.Save(h); err != nil {
		return err
	}
	a.snapshot(ctx, h)
	fmt.Println("Uploaded:", cid)
	return nil
}

// remote returns the shared page store: the HTTP backend when a URL is
// configured, else Postgres directly.
func (a *app) remote(ctx context.Context) (backend.Store, func(), error) {
	if u := strings.TrimSpace(a.cfg.Backend.URL); u != "" {
		c := backend.NewClient(u, "")
		if err := c.Login(ctx, subject()); err != nil {
			return nil, nil, fmt.Errorf("login to %s: %w", u, err)
		}
		return c, func() {}, nil
	}
	if dsn := strings.TrimSpace(a.cfg.Storage.DatabaseURL); dsn != "" {
		repo, err := backend.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	}
	return nil, nil, errors.New("no backend configured: set backend.url or storage.database_url")
}

func subject() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}

func (a *app) syncedVersion(ctx context.Context, root string) (int64, *storage.Revisions, error) {
	revs, err := storage.OpenRevisions(root)
	if err != nil {
		return 0, nil, err
	}
	v, ok, err := revs.Meta(ctx, remoteVersionKey)
	if err != nil {
		_ = revs.Close()
		return 0, nil, err
	}
	if !ok {
		return 0, revs, nil
	}
	n, _ := strconv.ParseInt(v, 10, 64)
	return n, revs, nil
}

func (a *app) push(ctx context.Context, dir string) error {
	h, err := a.open(dir)
	if err != nil {
		return err
	}
	name := h.Page.Name
	if name == "" {
		return errors.New("page has no name; set it before pushing")
	}
	store, done, err := a.remote(ctx)
	if err != nil {
		return err
	}
	defer done()
	expected, revs, err := a.syncedVersion(ctx, h.Root)
	if err != nil {
		return err
	}
	defer func() { _ = revs.Close() }()

	v, err := store.Put(ctx, name, &h.Page, expected)
	if errors.Is(err, backend.ErrConflict) {
		return fmt.Errorf("%w: the backend copy changed since version %d; pull first", err, expected)
	}
	if err != nil {
		return err
	}
	if err := revs.SetMeta(ctx, remoteVersionKey, strconv.FormatInt(v, 10)); err != nil {
		return err
	}
	fmt.Printf("Pushed %s as version %d\n", name, v)
	return nil
}

func (a *app) pull(ctx context.Context, dir string) error {
	h, err := a.open(dir)
	if err != nil {
		return err
	}
	store, done, err := a.remote(ctx)
	if err != nil {
		return err
	}
	defer done()
	sp, err := store.Get(ctx, h.Page.Name)
	if err != nil {
		return err
	}
	if sp.Page == nil {
		return fmt.Errorf("backend returned no page for %s", sp.Name)
	}
	h.Page = *sp.Page
	if err := storage.Save(h); err != nil {
		return err
	}
	a.snapshot(ctx, h)
	revs, err := storage.OpenRevisions(h.Root)
	if err != nil {
		return err
	}
	defer func() { _ = revs.Close() }()
	if err := revs.SetMeta(ctx, remoteVersionKey, strconv.FormatInt(sp.Version, 10)); err != nil {
		return err
	}
	fmt.Printf("Pulled %s version %d\n", sp.Name, sp.Version)
	return nil
}

func (a *app) serve(ctx context.Context, addr string) error {
	cfg := backend.ConfigFromEnv(backend.Config{Addr: firstNonEmpty(addr, a.cfg.Backend.Addr)})
	dsn := strings.TrimSpace(a.cfg.Storage.DatabaseURL)
	if dsn == "" {
		return errors.New("serve needs storage.database_url or PB_DATABASE_URL")
	}
	repo, err := backend.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	return backend.NewServer(repo, cfg.Secret).ListenAndServe(ctx, cfg.Addr)
}
