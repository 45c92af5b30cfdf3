/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package modules resolves module references of placed elements, either from
// an IPFS gateway by content id or from a local module folder.
package modules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pagebuilder/internal/domain"
	applog "pagebuilder/internal/log"
)

var (
	// ErrUnresolvable means the reference carries neither a content id nor a local path.
	ErrUnresolvable = errors.New("modules: reference has no cid or local path")
	// ErrNotFound means no source had the module.
	ErrNotFound = errors.New("modules: module not found")
)

// Module is a resolved module. The core only stores and hands it on; it never looks inside.
type Module struct {
	Ref    domain.ModuleRef
	Source string // URL or file path it was loaded from
	Data   []byte
}

// Resolver resolves a module reference.
type Resolver interface {
	Resolve(ctx context.Context, ref domain.ModuleRef) (*Module, error)
}

// maxModuleSize bounds a single module download.
const maxModuleSize = 32 << 20

// IPFSResolver fetches <gateway><cid> from the first gateway that answers.
type IPFSResolver struct {
	Gateways []string
	client   *http.Client
}

// NewIPFSResolver creates a resolver; empty gateways are skipped.
func NewIPFSResolver(timeout time.Duration, gateways ...string) *IPFSResolver {
	var gws []string
	for _, g := range gateways {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if !strings.HasSuffix(g, "/") {
			g += "/"
		}
		gws = append(gws, g)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &IPFSResolver{Gateways: gws, client: &http.Client{Timeout: timeout}}
}

func (r *IPFSResolver) Resolve(ctx context.Context, ref domain.ModuleRef) (*Module, error) {
	cid := strings.TrimSpace(ref.IPFSCID)
	if cid == "" {
		return nil, ErrUnresolvable
	}
	if !IsCID(cid) {
		return nil, fmt.Errorf("modules: invalid cid %q", cid)
	}
	l := applog.WithComponent("modules")
	var errs []error
	for _, gw := range r.Gateways {
		u := gw + cid
		data, err := r.get(ctx, u)
		if err == nil {
			return &Module{Ref: ref, Source: u, Data: data}, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.Warn("gateway failed", "url", u, "err", err)
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, cid, errors.Join(errs...))
}

func (r *IPFSResolver) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: %s", u, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxModuleSize))
}

// LocalResolver reads modules below Root. A directory resolves to its index.js.
type LocalResolver struct {
	Root string
}

func (r LocalResolver) Resolve(ctx context.Context, ref domain.ModuleRef) (*Module, error) {
	rel := strings.TrimSpace(ref.LocalPath)
	if rel == "" {
		rel = strings.TrimSpace(ref.Path)
	}
	if rel == "" {
		return nil, ErrUnresolvable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := r.Root
	if root == "" {
		root = "."
	}
	p := filepath.Join(root, filepath.FromSlash(rel))
	if back, err := filepath.Rel(root, p); err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("modules: path %q escapes module root", rel)
	}
	if fi, err := os.Stat(p); err == nil && fi.IsDir() {
		p = filepath.Join(p, "index.js")
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, err
	}
	return &Module{Ref: ref, Source: p, Data: data}, nil
}

// Chain picks a resolver by reference: content id first, then local path.
type Chain struct {
	IPFS  Resolver
	Local Resolver
}

func (c Chain) Resolve(ctx context.Context, ref domain.ModuleRef) (*Module, error) {
	switch {
	case ref.IPFSCID != "" && c.IPFS != nil:
		m, err := c.IPFS.Resolve(ctx, ref)
		if err == nil || c.Local == nil || (ref.LocalPath == "" && !ref.Local) {
			return m, err
		}
		return c.Local.Resolve(ctx, ref)
	case (ref.LocalPath != "" || ref.Local) && c.Local != nil:
		return c.Local.Resolve(ctx, ref)
	}
	return nil, ErrUnresolvable
}
