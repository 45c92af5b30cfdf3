/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend is the shared page repository: pages stored in Postgres,
// served over a small authenticated HTTP API, and a client for that API.
package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pagebuilder/internal/domain"
)

var (
	// ErrNotFound is returned when no page has the requested name.
	ErrNotFound = errors.New("backend: page not found")
	// ErrConflict is returned by Put when the stored version moved on.
	ErrConflict = errors.New("backend: version conflict")
)

// PageInfo is the listing projection of a stored page.
type PageInfo struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredPage is a page body with its version.
type StoredPage struct {
	PageInfo
	Page *domain.PageData `json:"page"`
}

// Store is what the HTTP server needs from a repository.
type Store interface {
	List(ctx context.Context) ([]PageInfo, error)
	Get(ctx context.Context, name string) (*StoredPage, error)
	// Put stores p under name when the current version equals expected
	// (0 for a page that does not exist yet) and returns the new version.
	Put(ctx context.Context, name string, p *domain.PageData, expected int64) (int64, error)
}

// PageRepo stores pages in Postgres through the pgx database/sql driver.
type PageRepo struct {
	db *sql.DB
}

// Open connects to dsn and pings the server.
func Open(ctx context.Context, dsn string) (*PageRepo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &PageRepo{db: db}, nil
}

func (r *PageRepo) Close() error { return r.db.Close() }

// Ping reports whether the database is reachable.
func (r *PageRepo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// Migrate applies the embedded schema migrations.
func (r *PageRepo) Migrate(ctx context.Context) error { return applyMigrations(ctx, r.db) }

func (r *PageRepo) List(ctx context.Context) ([]PageInfo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, title, version, updated_at FROM pages ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []PageInfo
	for rows.Next() {
		var p PageInfo
		if err := rows.Scan(&p.Name, &p.Title, &p.Version, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PageRepo) Get(ctx context.Context, name string) (*StoredPage, error) {
	var sp StoredPage
	var body []byte
	err := r.db.QueryRowContext(ctx, `SELECT name, title, version, updated_at, body FROM pages WHERE name = $1`, name).
		Scan(&sp.Name, &sp.Title, &sp.Version, &sp.UpdatedAt, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	var p domain.PageData
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", name, err)
	}
	sp.Page = &p
	return &sp, nil
}

func (r *PageRepo) Put(ctx context.Context, name string, p *domain.PageData, expected int64) (int64, error) {
	if p == nil {
		return 0, errors.New("backend: nil page")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("encode page: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var version int64
	if expected == 0 {
		err = tx.QueryRowContext(ctx, `INSERT INTO pages(name, title, body) VALUES($1, $2, $3)
			ON CONFLICT (name) DO NOTHING RETURNING version`, name, p.Title, string(body)).Scan(&version)
	} else {
		err = tx.QueryRowContext(ctx, `UPDATE pages SET title = $2, body = $3, version = version + 1, updated_at = now()
			WHERE name = $1 AND version = $4 RETURNING version`, name, p.Title, string(body), expected).Scan(&version)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s (expected version %d)", ErrConflict, name, expected)
	}
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO page_history(name, version, body) VALUES($1, $2, $3)`, name, version, string(body)); err != nil {
		return 0, fmt.Errorf("record history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}
