package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pagebuilder/internal/domain"
)

type memStore struct {
	mu    sync.Mutex
	pages map[string]*StoredPage
}

func newMemStore() *memStore { return &memStore{pages: map[string]*StoredPage{}} }

func (m *memStore) List(context.Context) ([]PageInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PageInfo
	for _, p := range m.pages {
		out = append(out, p.PageInfo)
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, name string) (*StoredPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[name]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *memStore) Put(_ context.Context, name string, p *domain.PageData, expected int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur int64
	if old, ok := m.pages[name]; ok {
		cur = old.Version
	}
	if cur != expected {
		return 0, ErrConflict
	}
	m.pages[name] = &StoredPage{PageInfo: PageInfo{Name: name, Title: p.Title, Version: cur + 1, UpdatedAt: time.Now()}, Page: p}
	return cur + 1, nil
}

func testPage() *domain.PageData {
	return &domain.PageData{Title: "Home", Sections: []*domain.Section{
		{ID: "r1", Row: 1, Elements: []*domain.Element{{ID: "e1", Column: 1, ColumnSpan: 6, Type: domain.ElementPrimitive}}},
	}}
}

func newTestClient(t *testing.T, store Store) *Client {
	t.Helper()
	srv := httptest.NewServer(NewServer(store, "s3cret").Handler())
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL+"/", "")
	if err := c.Login(context.Background(), "tester"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return c
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, newMemStore())

	v, err := c.Put(ctx, "home", testPage(), 0)
	if err != nil || v != 1 {
		t.Fatalf("put: %d %v", v, err)
	}
	if _, err := c.Put(ctx, "home", testPage(), 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if v, err = c.Put(ctx, "home", testPage(), 1); err != nil || v != 2 {
		t.Fatalf("put v2: %d %v", v, err)
	}
	sp, err := c.Get(ctx, "home")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sp.Version != 2 || sp.Page.Sections[0].Elements[0].ID != "e1" {
		t.Fatalf("unexpected page: %+v", sp)
	}
	list, err := c.List(ctx)
	if err != nil || len(list) != 1 || list[0].Title != "Home" {
		t.Fatalf("list: %+v %v", list, err)
	}
	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutRejectsInvalidPage(t *testing.T) {
	c := newTestClient(t, newMemStore())
	bad := testPage()
	bad.Sections[0].Elements[0].ColumnSpan = 20
	_, err := c.Put(context.Background(), "home", bad, 0)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestPagesRequireToken(t *testing.T) {
	srv := httptest.NewServer(NewServer(newMemStore(), "s3cret").Handler())
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.List(context.Background()); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401, got %v", err)
	}
	forged, _ := signToken("other-secret", "mallory", time.Now().Add(time.Hour))
	c.Token = forged
	if _, err := c.List(context.Background()); err == nil {
		t.Fatalf("token signed with a different secret must be rejected")
	}
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %v", err)
	}
	_ = resp.Body.Close()
}

func TestTokens(t *testing.T) {
	tok, err := signToken("k", "alice", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sub, err := verifyToken("k", tok); err != nil || sub != "alice" {
		t.Fatalf("verify: %q %v", sub, err)
	}
	expired, _ := signToken("k", "alice", time.Now().Add(-time.Minute))
	if _, err := verifyToken("k", expired); err == nil {
		t.Fatalf("expired token accepted")
	}
	if _, err := verifyToken("k", "garbage"); err == nil {
		t.Fatalf("malformed token accepted")
	}
}

func TestMigrationFiles(t *testing.T) {
	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles: %v", err)
	}
	if len(files) < 2 || files[0] != "0001_pages.sql" {
		t.Fatalf("unexpected migrations %v", files)
	}
	for _, f := range files {
		if _, err := parseVersion(f); err != nil {
			t.Fatalf("parseVersion(%s): %v", f, err)
		}
	}
	if _, err := parseVersion("pages.sql"); err == nil {
		t.Fatalf("expected error for unversioned name")
	}
}
