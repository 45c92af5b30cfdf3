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
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
	"pagebuilder/internal/events"
	"pagebuilder/internal/export"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/modules"
	"pagebuilder/internal/page"
	"pagebuilder/internal/storage"
	"pagebuilder/internal/telemetry"
)

// resolver builds the module resolver for a site: content ids through the
// configured gateways, local paths below the module root.
func (a *app) resolver(siteRoot string) modules.Resolver {
	return modules.NewCache(modules.Chain{
		IPFS:  modules.NewIPFSResolver(a.cfg.Modules.Timeout(), a.cfg.Modules.IPFSGateway, a.cfg.Modules.FallbackGateway),
		Local: modules.LocalResolver{Root: a.libDir(siteRoot)},
	})
}

// edit opens the site, runs op on an editor session holding the page and
// saves the result with a backup and a revision.
func (a *app) edit(ctx context.Context, dir, op string, fn func(s *editor.Session) error) error {
	h, err := a.open(dir)
	if err != nil {
		return err
	}
	ctx = applog.ContextWithSite(ctx, h.Root)
	l := applog.WithOperation(a.log, op)
	s := editor.New(editor.Options{
		HistoryDepth: a.cfg.Editor.HistoryDepth,
		DragReach:    a.cfg.Editor.DragReach,
		Resolver:     a.resolver(h.Root),
		LogContext:   ctx,
	})
	defer s.Close()
	unwatch := telemetry.Watch(s.Bus())
	defer unwatch()

	if err := s.Load(&h.Page); err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	h.Page = *s.Data()
	if err := storage.Save(h); err != nil {
		return err
	}
	s.Bus().Publish(s.Context(ctx), events.Save, &h.Page)
	a.snapshot(ctx, h)
	l.InfoContext(s.Context(ctx), "page saved", slog.Int("rows", len(h.Page.Sections)))
	return nil
}

// rowID accepts a 1-based row number or a row id.
func rowID(s *editor.Session, ref string) (string, error) {
	secs := s.Rows().Sections()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(secs) {
			return "", fmt.Errorf("row %d out of range (page has %d rows)", n, len(secs))
		}
		return secs[n-1].ID, nil
	}
	if _, ok := s.Rows().Section(ref); !ok {
		return "", fmt.Errorf("%w: %s", page.ErrSectionNotFound, ref)
	}
	return ref, nil
}

// moduleRef turns a command line argument into a module reference.
func moduleRef(arg, category string) *domain.ModuleRef {
	arg = strings.TrimSpace(arg)
	ref := &domain.ModuleRef{Category: domain.Category(category)}
	if modules.IsCID(arg) {
		ref.IPFSCID = arg
		ref.Name = arg
		return ref
	}
	ref.Local = true
	ref.LocalPath = filepath.ToSlash(arg)
	ref.Path = path.Base(ref.LocalPath)
	ref.Name = ref.Path
	return ref
}

func (a *app) addRow(ctx context.Context, dir, module, category string) error {
	return a.edit(ctx, dir, "add-row", func(s *editor.Session) error {
		sec, err := s.AddModule(s.Context(ctx), page.ElementConfig{Module: moduleRef(module, category)})
		if err != nil {
			return err
		}
		fmt.Printf("Added row %d (%s)\n", sec.Row, sec.ID)
		return nil
	})
}

func (a *app) rowOp(ctx context.Context, op, dir, ref string) error {
	return a.edit(ctx, dir, op, func(s *editor.Session) error {
		id, err := rowID(s, ref)
		if err != nil {
			return err
		}
		rows := s.Rows()
		switch op {
		case "clone-row":
			c, err := rows.CloneRow(id)
			if err != nil {
				return err
			}
			fmt.Printf("Cloned row to %d (%s)\n", c.Row, c.ID)
		case "delete-row":
			if err := rows.DeleteRow(id); err != nil {
				return err
			}
			fmt.Println("Deleted row", id)
		case "move-up", "move-down":
			move := rows.MoveRowDown
			if op == "move-up" {
				move = rows.MoveRowUp
			}
			moved, err := move(id)
			if err != nil {
				return err
			}
			if !moved {
				fmt.Println("Row is already at the edge; nothing changed.")
			}
		}
		return nil
	})
}

func (a *app) show(dir string) error {
	h, err := a.open(dir)
	if err != nil {
		return err
	}
	p := h.Page
	fmt.Printf("Page: %s\n", firstNonEmpty(p.Title, p.Name, "(untitled)"))
	fmt.Printf("Rows: %d\n", len(p.Sections))
	for _, sec := range p.Sections {
		fmt.Printf("  %2d  %s  (%d/%d columns)\n", sec.Row, sec.ID, domain.UsedColumns(sec.Elements), domain.MaxColumns)
		for _, el := range sec.Elements {
			fmt.Printf("        col %2d span %2d  %-9s %s\n", el.Column, el.ColumnSpan, el.Type, export.ElementLabel(el))
		}
	}
	fmt.Println("Root:", h.Root)
	return nil
}

func (a *app) revisions(ctx context.Context, dir string, limit int) error {
	abs, _ := filepath.Abs(dir)
	revs, err := storage.OpenRevisions(abs)
	if err != nil {
		return err
	}
	defer func() { _ = revs.Close() }()
	list, err := revs.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No revisions stored.")
		return nil
	}
	for _, r := range list {
		fmt.Printf("%5d  %s  %-20s rows=%d  %s\n", r.ID, r.At.Local().Format("2006-01-02 15:04:05"), r.Name, r.Rows, r.Hash[:12])
	}
	return nil
}

func (a *app) restore(ctx context.Context, dir string, id int64) error {
	h, err := a.open(dir)
	if err != nil {
		return err
	}
	revs, err := storage.OpenRevisions(h.Root)
	if err != nil {
		return err
	}
	rev, err := revs.Get(ctx, id)
	_ = revs.Close()
	if err != nil {
		return err
	}
	h.Page = *rev.Page
	if err := storage.Save(h); err != nil {
		return err
	}
	a.snapshot(ctx, h)
	fmt.Printf("Restored revision %d (%d rows)\n", rev.ID, len(h.Page.Sections))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
