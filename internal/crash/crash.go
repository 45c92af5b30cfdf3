/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file, a crash snapshot of the
// open page and a non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "pagebuilder/internal/log"
	"pagebuilder/internal/storage"
	"pagebuilder/internal/telemetry"
	"pagebuilder/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Recover captures a panic, logs it with its stack, snapshots the open page
// when h is set and writes a report naming the snapshot. The process exits
// with code 2. It must be deferred directly: defer crash.Recover(h).
func Recover(h *storage.SiteHandle) {
	if r := recover(); r != nil {
		handlePanic(h, r)
	}
}

// RecoverSite is Recover for callers that open the site after deferring;
// site is asked for the handle only once a panic happened.
//
// Usage: defer crash.RecoverSite(func() *storage.SiteHandle { return current })
func RecoverSite(site func() *storage.SiteHandle) {
	if r := recover(); r != nil {
		var h *storage.SiteHandle
		if site != nil {
			h = site()
		}
		handlePanic(h, r)
	}
}

func handlePanic(h *storage.SiteHandle, r any) {
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	var snapshot string
	if h != nil {
		path, err := storage.AutosaveCrashSnapshot(h)
		if err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			snapshot = path
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
	}
	report := buildReport(h, r, stack, snapshot)
	reportPath, err := writeReport(h, report)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err), slog.String("path", reportPath))
	}
	telemetry.UploadCrash(report)

	if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
		l.Error("failed to write crash message to stderr", slog.Any("err", err))
	}
	if snapshot != "" {
		_, _ = fmt.Fprintf(os.Stderr, "Unsaved page state was written to: %s\n", snapshot)
	}
	if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
		l.Error("failed to write version info to stderr", slog.Any("err", err))
	}
	exitFn(2)
}

// buildReport renders the plain-text crash report. It names the page and
// its shape, never its content.
func buildReport(h *storage.SiteHandle, panicVal any, stack []byte, snapshot string) []byte {
	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Page Builder Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if h != nil {
		elements := 0
		for _, sec := range h.Page.Sections {
			if sec != nil {
				elements += len(sec.Elements)
			}
		}
		_, _ = fmt.Fprintf(&buf, "Site: %s\n", h.Root)
		_, _ = fmt.Fprintf(&buf, "Manifest: %s\n", h.ManifestPath)
		_, _ = fmt.Fprintf(&buf, "Page: %s (%d rows, %d elements)\n", h.Page.Name, len(h.Page.Sections), elements)
	}
	if snapshot != "" {
		_, _ = fmt.Fprintf(&buf, "Snapshot: %s\n", snapshot)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))
	return buf.Bytes()
}

// writeReport stores report under the site's backups, or the temp dir without a site.
func writeReport(h *storage.SiteHandle, report []byte) (string, error) {
	dir := os.TempDir()
	if h != nil && h.Root != "" {
		dir = filepath.Join(h.Root, storage.BackupsDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			dir = os.TempDir()
		}
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405.000")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if _, err := f.Write(report); err != nil {
		_ = f.Close()
		return path, err
	}
	_ = f.Sync()
	return path, f.Close()
}
