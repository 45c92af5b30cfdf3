/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pagebuilder/internal/domain"
	applog "pagebuilder/internal/log"
	"pagebuilder/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// StateDirName holds per-site data that can be thrown away without losing the page.
	StateDirName         = ".pb"
	RevisionsFileName    = "history.sqlite"
	DefaultKeepRevisions = 50

	// schemaVersion tracks the local SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// language=SQL
// dialect=SQLite
const insertRevisionSQL = `INSERT INTO revisions(ts, name, row_count, hash, body) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestHashSQL = `SELECT id, hash FROM revisions ORDER BY id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const selectLatestRevisionSQL = `SELECT id, ts, name, row_count, hash, body FROM revisions ORDER BY id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const selectRevisionSQL = `SELECT id, ts, name, row_count, hash, body FROM revisions WHERE id = ?`

// language=SQL
// dialect=SQLite
const listRevisionsSQL = `SELECT id, ts, name, row_count, hash FROM revisions ORDER BY id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneRevisionsSQL = `DELETE FROM revisions WHERE id NOT IN (
	SELECT id FROM revisions ORDER BY id DESC LIMIT ?
)`

// Revision is one stored version of the page document.
type Revision struct {
	ID   int64
	At   time.Time
	Name string
	Rows int
	Hash string
	// Page is only filled by Latest and Get.
	Page *domain.PageData
}

// Revisions is the per-site revision history.
type Revisions struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// RevisionsPath returns the database file of the site's revision history.
func RevisionsPath(siteRoot string) string {
	return filepath.Join(siteRoot, StateDirName, RevisionsFileName)
}

// OpenRevisions ensures <root>/.pb/history.sqlite exists, enables WAL mode and
// brings the schema up to date. Callers must Close it.
func OpenRevisions(root string) (*Revisions, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "revisions_open").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("site root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, StateDirName), 0o755); err != nil {
		l.Error("create state dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", StateDirName, err)
	}

	path := RevisionsPath(root)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureRevisionSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure revision schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("revisions ready", slog.String("path", path))
	return &Revisions{db: db, path: path, log: l}, nil
}

// Close releases the database.
func (r *Revisions) Close() error { return r.db.Close() }

// Put stores p as a new revision. A page identical to the latest revision is
// not stored again; the latest revision id is returned in that case.
func (r *Revisions) Put(ctx context.Context, p *domain.PageData) (int64, error) {
	if p == nil {
		return 0, errors.New("nil page")
	}
	body, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("marshal revision: %w", err)
	}
	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])

	var lastID int64
	var lastHash string
	err = r.db.QueryRowContext(ctx, selectLatestHashSQL).Scan(&lastID, &lastHash)
	switch {
	case err == nil && lastHash == hash:
		return lastID, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("read latest revision: %w", err)
	}

	res, err := r.db.ExecContext(ctx, insertRevisionSQL,
		time.Now().UTC().Format(time.RFC3339Nano), p.Name, len(p.Sections), hash, body)
	if err != nil {
		return 0, fmt.Errorf("insert revision: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.log.Debug("revision stored", slog.Int64("id", id), slog.Int("rows", len(p.Sections)))
	return id, nil
}

// Latest returns the newest revision, or nil when the history is empty.
func (r *Revisions) Latest(ctx context.Context) (*Revision, error) {
	rev, err := scanRevision(r.db.QueryRowContext(ctx, selectLatestRevisionSQL))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rev, err
}

// Get returns the revision with the given id.
func (r *Revisions) Get(ctx context.Context, id int64) (*Revision, error) {
	rev, err := scanRevision(r.db.QueryRowContext(ctx, selectRevisionSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("revision %d: %w", id, os.ErrNotExist)
	}
	return rev, err
}

// List returns up to limit revisions, newest first, without their page bodies.
func (r *Revisions) List(ctx context.Context, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = DefaultKeepRevisions
	}
	rows, err := r.db.QueryContext(ctx, listRevisionsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		var rev Revision
		var ts string
		if err := rows.Scan(&rev.ID, &ts, &rev.Name, &rev.Rows, &rev.Hash); err != nil {
			return nil, err
		}
		rev.At, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, rev)
	}
	return out, rows.Err()
}

// Prune keeps the newest keep revisions and deletes the rest.
func (r *Revisions) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := r.db.ExecContext(ctx, pruneRevisionsSQL, keep)
	if err != nil {
		return 0, fmt.Errorf("prune revisions: %w", err)
	}
	return res.RowsAffected()
}

func scanRevision(row *sql.Row) (*Revision, error) {
	var rev Revision
	var ts string
	var body []byte
	if err := row.Scan(&rev.ID, &ts, &rev.Name, &rev.Rows, &rev.Hash, &body); err != nil {
		return nil, err
	}
	rev.At, _ = time.Parse(time.RFC3339Nano, ts)
	var p domain.PageData
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode revision %d: %w", rev.ID, err)
	}
	rev.Page = &p
	return &rev, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// A fresh database starts at version 1 and is migrated forward like any other.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureRevisionSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS revisions (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		ts        TEXT    NOT NULL,
		name      TEXT    NOT NULL DEFAULT '',
		row_count INTEGER NOT NULL DEFAULT 0,
		hash      TEXT    NOT NULL,
		body      BLOB    NOT NULL
	);`)
	if err != nil {
		return fmt.Errorf("create revisions: %w", err)
	}
	return nil
}

// SchemaVersion reports the schema version recorded in the database.
func (r *Revisions) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := r.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

// Meta returns a value from the site's key/value table; ok is false when unset.
func (r *Revisions) Meta(ctx context.Context, key string) (value string, ok bool, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read meta %s: %w", key, err)
	}
	return value, true, nil
}

// SetMeta stores value under key, replacing an earlier value.
func (r *Revisions) SetMeta(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write meta %s: %w", key, err)
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade; a newer build wrote this file.
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_revisions_hash ON revisions(hash);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}
