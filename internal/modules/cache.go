/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package modules

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"pagebuilder/internal/domain"
)

// Cache memoizes successful resolutions by ModuleRef.Key. Concurrent requests
// for the same key share one underlying resolve.
type Cache struct {
	next  Resolver
	mu    sync.RWMutex
	items map[string]*Module
	group singleflight.Group
}

func NewCache(next Resolver) *Cache {
	return &Cache{next: next, items: map[string]*Module{}}
}

func (c *Cache) Resolve(ctx context.Context, ref domain.ModuleRef) (*Module, error) {
	key := ref.Key()
	c.mu.RLock()
	m, ok := c.items[key]
	c.mu.RUnlock()
	if ok {
		return m, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		m, err := c.next.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[key] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Module), nil
}

// Len returns the number of cached modules.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Forget drops a cached module.
func (c *Cache) Forget(ref domain.ModuleRef) {
	c.mu.Lock()
	delete(c.items, ref.Key())
	c.mu.Unlock()
}

// PageRefs collects the distinct module references used on a page, nested elements included.
func PageRefs(p *domain.PageData) []domain.ModuleRef {
	seen := map[string]bool{}
	var out []domain.ModuleRef
	var walk func([]*domain.Element)
	walk = func(es []*domain.Element) {
		for _, e := range es {
			if e.Module != nil && !seen[e.Module.Key()] {
				seen[e.Module.Key()] = true
				out = append(out, *e.Module)
			}
			walk(e.Elements)
		}
	}
	if p.Header != nil {
		walk(p.Header.Elements)
	}
	for _, s := range p.Sections {
		walk(s.Elements)
	}
	if p.Footer != nil {
		walk(p.Footer.Elements)
	}
	return out
}

// Prefetch resolves refs with at most limit requests in flight. The first
// failure cancels the rest and is returned.
func Prefetch(ctx context.Context, r Resolver, refs []domain.ModuleRef, limit int) (map[string]*Module, error) {
	if limit <= 0 {
		limit = 4
	}
	var mu sync.Mutex
	out := make(map[string]*Module, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, ref := range refs {
		g.Go(func() error {
			m, err := r.Resolve(gctx, ref)
			if err != nil {
				return err
			}
			mu.Lock()
			out[ref.Key()] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
