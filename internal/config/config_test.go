/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

type memTokens map[string]string

func (m memTokens) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m memTokens) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memTokens) Delete(service, key string) error     { delete(m, service+"/"+key); return nil }

func isolate(t *testing.T) memTokens {
	t.Helper()
	t.Setenv("PB_CONFIG_DIR", t.TempDir())
	mem := memTokens{}
	prev := SetTokenStore(mem)
	t.Cleanup(func() { SetTokenStore(prev) })
	return mem
}

func TestEnvOverridesGateway(t *testing.T) {
	isolate(t)
	t.Setenv(EnvIPFSGateway, "https://gw.example.test/ipfs/")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Modules.IPFSGateway, "https://gw.example.test/ipfs/"; got != want {
		t.Fatalf("Modules.IPFSGateway = %q, want %q", got, want)
	}
	if env, ok := EnvOverrideFor("modules.ipfs_gateway"); !ok || env != EnvIPFSGateway {
		t.Fatalf("EnvOverrideFor = %q,%v", env, ok)
	}
	if _, ok := EnvOverrideFor("modules.root_dir"); ok {
		t.Fatalf("root_dir is not overridden")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	mem := isolate(t)
	cfg := Defaults()
	cfg.Editor.HistoryDepth = 7
	cfg.Storage.DatabaseURL = "postgres://localhost/pages"
	if err := Save(cfg, "secret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path, _ := ConfigPath()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Fatalf("unexpected path %s", path)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Editor.HistoryDepth != 7 || got.Storage.DatabaseURL != "postgres://localhost/pages" {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if tok != "secret" {
		t.Fatalf("token = %q", tok)
	}
	if err := ForgetToken(); err != nil {
		t.Fatalf("ForgetToken: %v", err)
	}
	if len(mem) != 0 {
		t.Fatalf("token not deleted")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/pb.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/pb.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeKeepsDefaultsForZeroValues(t *testing.T) {
	dst := Defaults()
	var src AppConfig
	mergeInto(&dst, &src)
	if dst.Modules.IPFSGateway != Defaults().Modules.IPFSGateway || dst.Editor.DragReach != 24 {
		t.Fatalf("zero values should not clobber defaults: %#v", dst)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/pb.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/pb.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestModuleTimeout(t *testing.T) {
	if d := (ModulesConfig{}).Timeout(); d != 15*time.Second {
		t.Fatalf("default timeout = %v", d)
	}
	if d := (ModulesConfig{TimeoutMs: 250}).Timeout(); d != 250*time.Millisecond {
		t.Fatalf("timeout = %v", d)
	}
}

func TestBackendOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "http://pages.example.test")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.URL != "http://pages.example.test" || cfg.Backend.Addr != ":8080" {
		t.Fatalf("backend = %#v", cfg.Backend)
	}
	if _, ok := EnvOverrideFor("backend.addr"); ok {
		t.Fatalf("addr is not overridden")
	}
}
