/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements site persistence.
// It handles create/open/save for the page document (page.json) with transactional writes and timestamped backups,
// validates documents against the embedded page schema, and keeps a per-site revision history
// in an embedded SQLite database at <site>/.pb/history.sqlite.
// The revision history is an aid for recovery; page.json stays the source of truth.
package storage
