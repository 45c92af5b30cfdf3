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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Uploader pushes page data to the IPFS upload gateway and returns the content id.
type Uploader struct {
	Endpoint string
	Token    string // bearer token
	client   *http.Client
}

func NewUploader(endpoint, token string, timeout time.Duration) *Uploader {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Uploader{Endpoint: strings.TrimSpace(endpoint), Token: token, client: &http.Client{Timeout: timeout}}
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		CID string `json:"cid"`
	} `json:"data"`
}

// Upload posts data and returns the cid reported by the gateway.
func (u *Uploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	if u.Endpoint == "" {
		return "", errors.New("modules: no upload endpoint configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if name != "" {
		req.Header.Set("X-File-Name", name)
	}
	if u.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload %s: %s", u.Endpoint, resp.Status)
	}
	var out uploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("upload: decode response: %w", err)
	}
	if !out.Success || !IsCID(out.Data.CID) {
		msg := out.Error
		if msg == "" {
			msg = "no cid in response"
		}
		return "", fmt.Errorf("upload: %s", msg)
	}
	return out.Data.CID, nil
}

const (
	base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	base32Alphabet = "abcdefghijklmnopqrstuvwxyz234567"
)

// IsCID reports whether s has the textual shape of a CIDv0 (base58 "Qm...",
// 46 chars) or a base32 CIDv1 ("b..." lower case).
func IsCID(s string) bool {
	switch {
	case len(s) == 46 && strings.HasPrefix(s, "Qm"):
		return onlyFrom(s, base58Alphabet)
	case len(s) >= 50 && s[0] == 'b':
		return onlyFrom(s[1:], base32Alphabet)
	}
	return false
}

func onlyFrom(s, alphabet string) bool {
	for _, r := range s {
		if !strings.ContainsRune(alphabet, r) {
			return false
		}
	}
	return true
}
