/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in, anonymous editor usage events and crash
// reports. Nothing is sent unless the user opted in and an endpoint is set.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/events"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/version"
)

// Environment variables read by FromEnv.
const (
	EnvOptIn    = "PB_TELEMETRY_OPT_IN"
	EnvURL      = "PB_TELEMETRY_URL"
	EnvCrashURL = "PB_CRASH_UPLOAD_URL"
	EnvTimeout  = "PB_TELEMETRY_TIMEOUT_MS"
	EnvDebug    = "PB_TELEMETRY_DEBUG"
)

// Config holds runtime configuration for telemetry and crash uploads.
// If no URLs are set, events are dropped even when OptIn is true.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv(EnvOptIn)),
		EventsURL:    strings.TrimSpace(os.Getenv(EnvURL)),
		CrashURL:     strings.TrimSpace(os.Getenv(EnvCrashURL)),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv(EnvDebug) != "",
	}
	if ms := strings.TrimSpace(os.Getenv(EnvTimeout)); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Client is a minimal async sender; it drops events silently on errors.
// The queue is bounded so callers never block.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan any
	once   sync.Once
	closed chan struct{}
	wg     sync.WaitGroup
}

var (
	defaultClient *Client
	defaultOnce   sync.Once
)

// InitDefault initializes the package-level default client from env when first used.
func InitDefault() {
	defaultOnce.Do(func() {
		if defaultClient == nil {
			NewDefault(FromEnv())
		}
	})
}

// NewDefault creates and installs the default client with cfg.
func NewDefault(cfg Config) {
	if defaultClient != nil {
		defaultClient.Close()
	}
	defaultClient = New(cfg)
}

// New constructs a client and starts its send loop.
func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan any, 64),
		closed: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// Enabled reports whether telemetry is opted in and an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports whether the default client is enabled.
func Enabled() bool {
	InitDefault()
	return defaultClient.Enabled()
}

// Event queues a small JSON event if enabled. props must not carry page content.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	select {
	case c.q <- payload:
	default:
		// queue full
	}
}

// Event using default client.
func Event(name string, props map[string]any) { InitDefault(); defaultClient.Event(name, props) }

// Watch forwards editor bus activity as anonymous events: which event fired
// and the row count of the page involved, never ids, names or module data.
// The returned func unsubscribes.
func (c *Client) Watch(bus *events.Bus) func() {
	if bus == nil {
		return func() {}
	}
	names := []string{events.Load, events.Save, events.Clone, events.AddElement, events.Preview}
	unsubs := make([]func(), 0, len(names))
	for _, n := range names {
		name := n
		unsubs = append(unsubs, bus.Subscribe(name, func(_ context.Context, payload any) error {
			props := map[string]any{}
			if p, ok := payload.(*domain.PageData); ok && p != nil {
				props["rows"] = len(p.Sections)
			}
			c.Event("editor."+name, props)
			return nil
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Watch using default client.
func Watch(bus *events.Bus) func() { InitDefault(); return defaultClient.Watch(bus) }

// Flush waits briefly for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for {
		if len(c.q) == 0 || time.Now().After(deadline) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Shutdown flushes and closes the default client, if one was created.
func Shutdown(ctx context.Context) {
	if defaultClient == nil {
		return
	}
	defaultClient.Flush(ctx)
	defaultClient.Close()
}

// Close stops the send loop and waits for it and any crash upload in flight.
func (c *Client) Close() {
	c.once.Do(func() { close(c.closed) })
	c.wg.Wait()
}

func (c *Client) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			c.send(item)
		}
	}
}

func (c *Client) send(item any) {
	buf, _ := json.Marshal(item)
	req, err := http.NewRequest(http.MethodPost, c.cfg.EventsURL, bytes.NewReader(buf))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry event sent")
	}
}

// UploadCrash posts an already serialized crash report to the crash URL if opted in.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	c.wg.Add(1)
	go func(b []byte) {
		defer c.wg.Done()
		req, err := http.NewRequest(http.MethodPost, c.cfg.CrashURL, bytes.NewReader(b))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
		resp, err := c.cli.Do(req)
		if err != nil {
			if c.cfg.DebugLogging {
				c.log.Debug("crash upload failed", slog.Any("err", err))
			}
			return
		}
		_ = resp.Body.Close()
		if c.cfg.DebugLogging {
			c.log.Debug("crash report uploaded")
		}
	}(append([]byte(nil), report...))
}

// UploadCrash using default client.
func UploadCrash(report []byte) { InitDefault(); defaultClient.UploadCrash(report) }
