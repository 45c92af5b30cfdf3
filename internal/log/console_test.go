package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("PB_LOG_LEVEL", "warn")
	t.Setenv("PB_LOG_FORMAT", "json")
	t.Setenv("PB_LOG_SOURCE", "true")
	t.Setenv("PB_LOG_FILE", "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
	if v := getenv("PB_SURELY_UNSET_VAR", "fallback"); v != "fallback" {
		t.Fatalf("getenv fallback failed: %q", v)
	}
}

func TestConsoleHandlerLine(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelWarn, false)
	if h.Enabled(context.Background(), slog.LevelInfo) || !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("level filter wrong")
	}

	l := slog.New(h).With(slog.String("component", "page"), slog.String("k", "v")).WithGroup("row")
	l.Error("move refused", slog.Int("n", 3), slog.Float64("w", 2.5), slog.String("name", "hero banner"))

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{"ERR [page] move refused", " k=v", " row.n=3", " row.w=2.5", ` row.name="hero banner"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "row.k=") || strings.Contains(line, "component=") {
		t.Fatalf("attrs before the group must stay unprefixed: %q", line)
	}
}

func TestConsoleHandlerGroupValue(t *testing.T) {
	var buf bytes.Buffer
	r := slog.NewRecord(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), slog.LevelDebug, "drag", 0)
	r.AddAttrs(slog.Group("slot", slog.String("parent", "R1"), slog.Int("index", 2)))
	if err := newConsoleHandler(&buf, slog.LevelDebug, true).Handle(context.Background(), r); err != nil {
		t.Fatalf("handle: %v", err)
	}
	want := "03:04:05.000 DBG drag slot.parent=R1 slot.index=2\n"
	if got := buf.String(); got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestContextTagsReachConsole(t *testing.T) {
	var buf bytes.Buffer
	l := Init(Options{Level: "debug", Output: &buf})
	t.Cleanup(func() { Init(Options{Output: &bytes.Buffer{}}) })

	ctx := ContextWithSession(ContextWithSite(context.Background(), "/sites/home"), "s-9")
	WithComponent("editor").InfoContext(ctx, "page loaded")
	l.Info("no context")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "site=/sites/home") || !strings.Contains(lines[0], "session=s-9") || !strings.Contains(lines[0], "[editor]") {
		t.Fatalf("context attrs missing: %q", lines[0])
	}
	if strings.Contains(lines[1], "site=") {
		t.Fatalf("untagged call got a site: %q", lines[1])
	}
	if SiteFrom(ctx) != "/sites/home" || SessionFrom(ctx) != "s-9" || SiteFrom(context.Background()) != "" {
		t.Fatalf("context accessors wrong")
	}
}
