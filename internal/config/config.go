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
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type EditorConfig struct {
	HistoryDepth int     `yaml:"history_depth"` // 0 = unlimited
	DragReach    float64 `yaml:"drag_reach"`    // px a pointer may be outside a slot and still hover it
}

type ModulesConfig struct {
	IPFSGateway     string `yaml:"ipfs_gateway"`
	FallbackGateway string `yaml:"fallback_gateway"`
	UploadEndpoint  string `yaml:"upload_endpoint"`
	TimeoutMs       int    `yaml:"timeout_ms"`
	RootDir         string `yaml:"root_dir"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type StorageConfig struct {
	KeepRevisions int    `yaml:"keep_revisions"`
	DatabaseURL   string `yaml:"database_url"`
}

// BackendConfig points at the shared page backend. URL is used by the CLI
// client; Addr is where `pagebuilder serve` listens.
type BackendConfig struct {
	URL  string `yaml:"url"`
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Modules       ModulesConfig `yaml:"modules"`
	Storage       StorageConfig `yaml:"storage"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{HistoryDepth: 200, DragReach: 24},
		Modules: ModulesConfig{
			IPFSGateway:     "https://ipfs.scom.dev/ipfs/",
			FallbackGateway: "https://ipfs.io/ipfs/",
			UploadEndpoint:  "https://ipfs-gateway.scom.dev/api/1.0/sync/data",
			TimeoutMs:       15000,
			RootDir:         "libs",
		},
		Storage: StorageConfig{KeepRevisions: 50},
		Backend: BackendConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvHistoryDepth   = "PB_HISTORY_DEPTH"
	EnvDragReach      = "PB_DRAG_REACH"
	EnvIPFSGateway    = "PB_IPFS_GATEWAY"
	EnvUploadEndpoint = "PB_UPLOAD_ENDPOINT"
	EnvModuleTimeout  = "PB_MODULE_TIMEOUT_MS"
	EnvModuleRoot     = "PB_MODULE_ROOT"
	EnvKeepRevisions  = "PB_KEEP_REVISIONS"
	EnvDatabaseURL    = "PB_DATABASE_URL"
	EnvBackendURL     = "PB_BACKEND_URL"
	EnvBackendAddr    = "PB_BACKEND_ADDR"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "PB_LOG_LEVEL"
	EnvLogFormat = "PB_LOG_FORMAT"
	EnvLogSource = "PB_LOG_SOURCE"
	EnvLogFile   = "PB_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "PageBuilder"
	keyringToken   = "upload_token"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// SetTokenStore swaps the keychain backend and returns the previous one.
func SetTokenStore(s TokenStore) TokenStore {
	prev := tokenStore
	tokenStore = s
	return prev
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error {
	if err := keyring.Delete(service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// ConfigPath returns the per-user config file path. PB_CONFIG_DIR overrides the directory.
func ConfigPath() (string, error) {
	base := strings.TrimSpace(os.Getenv("PB_CONFIG_DIR"))
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", errors.New("cannot resolve config directory")
		}
		base = filepath.Join(dir, "pagebuilder")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the upload token from keyring (not kept inside the struct; returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// ForgetToken removes the stored upload token.
func ForgetToken() error { return tokenStore.Delete(keyringService, keyringToken) }

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.Editor.HistoryDepth != 0 {
		dst.Editor.HistoryDepth = src.Editor.HistoryDepth
	}
	if src.Editor.DragReach != 0 {
		dst.Editor.DragReach = src.Editor.DragReach
	}
	if v := strings.TrimSpace(src.Modules.IPFSGateway); v != "" {
		dst.Modules.IPFSGateway = v
	}
	if v := strings.TrimSpace(src.Modules.FallbackGateway); v != "" {
		dst.Modules.FallbackGateway = v
	}
	if v := strings.TrimSpace(src.Modules.UploadEndpoint); v != "" {
		dst.Modules.UploadEndpoint = v
	}
	if src.Modules.TimeoutMs != 0 {
		dst.Modules.TimeoutMs = src.Modules.TimeoutMs
	}
	if v := strings.TrimSpace(src.Modules.RootDir); v != "" {
		dst.Modules.RootDir = v
	}
	if src.Storage.KeepRevisions != 0 {
		dst.Storage.KeepRevisions = src.Storage.KeepRevisions
	}
	if v := strings.TrimSpace(src.Storage.DatabaseURL); v != "" {
		dst.Storage.DatabaseURL = v
	}
	if v := strings.TrimSpace(src.Backend.URL); v != "" {
		dst.Backend.URL = v
	}
	if v := strings.TrimSpace(src.Backend.Addr); v != "" {
		dst.Backend.Addr = v
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvHistoryDepth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Editor.HistoryDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDragReach)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Editor.DragReach = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvIPFSGateway)); v != "" {
		cfg.Modules.IPFSGateway = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvUploadEndpoint)); v != "" {
		cfg.Modules.UploadEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvModuleTimeout)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Modules.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvModuleRoot)); v != "" {
		cfg.Modules.RootDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvKeepRevisions)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Storage.KeepRevisions = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendURL)); v != "" {
		cfg.Backend.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendAddr)); v != "" {
		cfg.Backend.Addr = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envByKey = map[string]string{
	"editor.history_depth":    EnvHistoryDepth,
	"editor.drag_reach":       EnvDragReach,
	"modules.ipfs_gateway":    EnvIPFSGateway,
	"modules.upload_endpoint": EnvUploadEndpoint,
	"modules.timeout_ms":      EnvModuleTimeout,
	"modules.root_dir":        EnvModuleRoot,
	"storage.keep_revisions":  EnvKeepRevisions,
	"storage.database_url":    EnvDatabaseURL,
	"backend.url":             EnvBackendURL,
	"backend.addr":            EnvBackendAddr,
	"logging.level":           EnvLogLevel,
	"logging.format":          EnvLogFormat,
	"logging.source":          EnvLogSource,
	"logging.file":            EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := envByKey[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// Timeout returns the module fetch/upload timeout.
func (m ModulesConfig) Timeout() time.Duration {
	if m.TimeoutMs <= 0 {
		return time.Duration(Defaults().Modules.TimeoutMs) * time.Millisecond
	}
	return time.Duration(m.TimeoutMs) * time.Millisecond
}
