/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pagebuilder/internal/domain"
)

// Client is a minimal HTTP client for the page backend. It implements Store.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// StatusError is a non-2xx answer of the server.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Msg    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server %s %s: %d %s", e.Method, e.Path, e.Code, e.Msg)
}

// Unwrap maps status codes onto the repository errors.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return &StatusError{Method: method, Path: u.Path, Code: resp.StatusCode, Msg: e.Error}
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Login requests a token for subject and keeps it on the client.
func (c *Client) Login(ctx context.Context, subject string) error {
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", map[string]any{"subject": subject}, &out); err != nil {
		return err
	}
	c.Token = out.Token
	return nil
}

func (c *Client) List(ctx context.Context) ([]PageInfo, error) {
	var list []PageInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/pages", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Get(ctx context.Context, name string) (*StoredPage, error) {
	var sp StoredPage
	if err := c.doJSON(ctx, http.MethodGet, "/api/pages/"+url.PathEscape(name), nil, &sp); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (c *Client) Put(ctx context.Context, name string, p *domain.PageData, expected int64) (int64, error) {
	var out struct {
		Version int64 `json:"version"`
	}
	req := map[string]any{"version": expected, "page": p}
	if err := c.doJSON(ctx, http.MethodPut, "/api/pages/"+url.PathEscape(name), req, &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}
