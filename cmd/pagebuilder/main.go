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
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"pagebuilder/internal/config"
	"pagebuilder/internal/crash"
	"pagebuilder/internal/domain"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/storage"
	"pagebuilder/internal/telemetry"
	"pagebuilder/internal/version"
)

func usage() {
	fmt.Println("Page Builder")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pagebuilder version|-v|--version              Show version")
	fmt.Println("  pagebuilder init <dir> <name> [title]          Create a new site with an empty page")
	fmt.Println("  pagebuilder show <dir>                         Print the rows and elements of the page")
	fmt.Println("  pagebuilder validate <dir>                     Check page.json against the page schema")
	fmt.Println("  pagebuilder add-row <dir> <module> [category]  Append a row holding <module> (cid or local path)")
	fmt.Println("  pagebuilder clone-row <dir> <row>              Duplicate a row (row number or id)")
	fmt.Println("  pagebuilder delete-row <dir> <row>             Remove a row")
	fmt.Println("  pagebuilder move-up|move-down <dir> <row>      Swap a row with its neighbour")
	fmt.Println("  pagebuilder revisions <dir> [limit]            List stored revisions")
	fmt.Println("  pagebuilder restore <dir> <revision>           Save a stored revision as the current page")
	fmt.Println("  pagebuilder wireframe <dir> <out> [viewport]   Write a wireframe (.pdf, .png or .svg)")
	fmt.Println("  pagebuilder export <dir> [format...]           Write wireframes for every viewport to <dir>/exports")
	fmt.Println("  pagebuilder prefetch <dir>                     Resolve every module the page uses")
	fmt.Println("  pagebuilder pack-modules <dir> <zip>           Zip the site's local module library")
	fmt.Println("  pagebuilder install-modules <dir> <zip>        Unpack a module zip into the site's library")
	fmt.Println("  pagebuilder upload <dir>                       Upload page.json to the IPFS gateway")
	fmt.Println("  pagebuilder push|pull <dir>                    Sync the page with the shared backend")
	fmt.Println("  pagebuilder serve [addr]                       Run the page backend (needs PB_DATABASE_URL)")
	fmt.Println("  pagebuilder set-token <token>                  Store the upload token in the OS keychain")
}

// app carries what every command needs.
type app struct {
	cfg   config.AppConfig
	token string
	log   *slog.Logger
	// site is the page being worked on; a panic snapshots it.
	site *storage.SiteHandle
}

func main() {
	cfg, token, cfgErr := config.Load()
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	a := &app{cfg: cfg, token: token, log: applog.WithComponent("cli")}
	defer crash.RecoverSite(func() *storage.SiteHandle { return a.site })
	if cfgErr != nil {
		a.log.Warn("config not loaded; using defaults", slog.Any("err", cfgErr))
	}
	telemetry.InitDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args
	a.log.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	code := a.run(ctx, args[1], args[2:])
	telemetry.Event("cli."+args[1], map[string]any{"ok": code == 0})
	telemetry.Shutdown(context.Background())
	_ = applog.Close()
	if code != 0 {
		stop()
		os.Exit(code)
	}
}

// run executes one command and returns the process exit code.
func (a *app) run(ctx context.Context, cmd string, args []string) int {
	need := func(n int, what string) bool {
		if len(args) < n {
			fmt.Printf("%s requires %s\n", cmd, what)
			usage()
			return false
		}
		return true
	}
	var err error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Println("Page Builder")
		fmt.Println(version.String())
		return 0
	case "init":
		if !need(2, "<dir> and <name>") {
			return 2
		}
		title := ""
		if len(args) > 2 {
			title = args[2]
		}
		err = a.initSite(args[0], args[1], title)
	case "show":
		if !need(1, "<dir>") {
			return 2
		}
		err = a.show(args[0])
	case "validate":
		if !need(1, "<dir>") {
			return 2
		}
		err = a.validate(args[0])
	case "add-row":
		if !need(2, "<dir> and <module>") {
			return 2
		}
		category := ""
		if len(args) > 2 {
			category = args[2]
		}
		err = a.addRow(ctx, args[0], args[1], category)
	case "clone-row", "delete-row", "move-up", "move-down":
		if !need(2, "<dir> and <row>") {
			return 2
		}
		err = a.rowOp(ctx, cmd, args[0], args[1])
	case "revisions":
		if !need(1, "<dir>") {
			return 2
		}
		limit := 20
		if len(args) > 1 {
			if n, perr := strconv.Atoi(args[1]); perr == nil {
				limit = n
			}
		}
		err = a.revisions(ctx, args[0], limit)
	case "restore":
		if !need(2, "<dir> and <revision>") {
			return 2
		}
		id, perr := strconv.ParseInt(args[1], 10, 64)
		if perr != nil {
			fmt.Println("revision must be a number")
			return 2
		}
		err = a.restore(ctx, args[0], id)
	case "wireframe":
		if !need(2, "<dir> and <out>") {
			return 2
		}
		vp := ""
		if len(args) > 2 {
			vp = args[2]
		}
		err = a.wireframe(args[0], args[1], vp)
	case "export":
		if !need(1, "<dir>") {
			return 2
		}
		err = a.export(args[0], args[1:])
	case "prefetch":
		if !need(1, "<dir>") {
			return 2
		}
		err = a.prefetch(ctx, args[0])
	case "pack-modules", "install-modules":
		if !need(2, "<dir> and <zip>") {
			return 2
		}
		err = a.modulePack(cmd, args[0], args[1])
	case "upload":
		if !need(1, "<dir>") {
			return 2
		}
		err = a.upload(ctx, args[0])
	case "push":
		if !need(1, "<dir>") {
			return 2
		}
		err = a.push(ctx, args[0])
	case "pull":
		if !need(1, "<dir>") {
			return 2
		}
		err = a.pull(ctx, args[0])
	case "serve":
		addr := ""
		if len(args) > 0 {
			addr = args[0]
		}
		err = a.serve(ctx, addr)
	case "set-token":
		if !need(1, "<token>") {
			return 2
		}
		err = config.Save(a.cfg, args[0])
		if err == nil {
			fmt.Println("Token stored in the OS keychain.")
		}
	default:
		usage()
		return 2
	}
	if err != nil {
		a.log.Error(cmd+" failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		return 1
	}
	return 0
}

func (a *app) initSite(dir, name, title string) error {
	abs, _ := filepath.Abs(dir)
	a.log.InfoContext(applog.ContextWithSite(context.Background(), abs), "init site", slog.String("name", name))
	h, err := storage.InitSite(abs, domain.PageData{Name: name, Title: title, Sections: []*domain.Section{}})
	if err != nil {
		return err
	}
	a.site = h
	a.snapshot(context.Background(), h)
	fmt.Println("Created site at", abs)
	return nil
}

// open loads the site at dir and remembers it for crash snapshots.
func (a *app) open(dir string) (*storage.SiteHandle, error) {
	abs, _ := filepath.Abs(dir)
	h, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	a.site = h
	return h, nil
}

func (a *app) validate(dir string) error {
	abs, _ := filepath.Abs(dir)
	data, err := os.ReadFile(filepath.Join(abs, storage.ManifestFileName))
	if err != nil {
		return err
	}
	if err := storage.Validate(data); err != nil {
		return err
	}
	fmt.Println("page.json is valid")
	return nil
}

// snapshot records the saved page in the site's revision history. The
// history is disposable, so failures are only logged.
func (a *app) snapshot(ctx context.Context, h *storage.SiteHandle) {
	l := applog.WithOperation(a.log, "snapshot")
	ctx = applog.ContextWithSite(ctx, h.Root)
	revs, err := storage.OpenRevisions(h.Root)
	if err != nil {
		l.WarnContext(ctx, "revision history unavailable", slog.Any("err", err))
		return
	}
	defer func() { _ = revs.Close() }()
	id, err := revs.Put(ctx, &h.Page)
	if err != nil {
		l.WarnContext(ctx, "store revision failed", slog.Any("err", err))
		return
	}
	keep := a.cfg.Storage.KeepRevisions
	if keep <= 0 {
		keep = storage.DefaultKeepRevisions
	}
	if n, err := revs.Prune(ctx, keep); err != nil {
		l.WarnContext(ctx, "prune revisions failed", slog.Any("err", err))
	} else if n > 0 {
		l.DebugContext(ctx, "pruned revisions", slog.Int64("removed", n))
	}
	l.DebugContext(ctx, "revision stored", slog.Int64("id", id))
}
