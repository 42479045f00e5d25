// Copyright 2025 The CortexKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	createMemoryItemsSQL = `
CREATE TABLE IF NOT EXISTS memory_items (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    kind VARCHAR(32) NOT NULL,
    raw_text TEXT NOT NULL,
    encrypted INTEGER NOT NULL DEFAULT 0,
    summary TEXT,
    tags TEXT,
    importance REAL NOT NULL DEFAULT 0.5,
    consent INTEGER NOT NULL DEFAULT 0,
    privacy VARCHAR(16) NOT NULL DEFAULT 'low',
    tombstoned INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memory_items_kind ON memory_items(kind);
CREATE INDEX IF NOT EXISTS idx_memory_items_created_at ON memory_items(created_at);
`

	createEmbeddingsSQL = `
CREATE TABLE IF NOT EXISTS embeddings (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    memory_id VARCHAR(64) NOT NULL,
    position INTEGER NOT NULL,
    chunk_text TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (memory_id) REFERENCES memory_items(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_embeddings_memory_id ON embeddings(memory_id);
`

	createSemanticFactsSQL = `
CREATE TABLE IF NOT EXISTS semantic_facts (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    fact TEXT NOT NULL,
    source_ids TEXT,
    created_at TIMESTAMP NOT NULL
);
`

	createEpisodicEventsSQL = `
CREATE TABLE IF NOT EXISTS episodic_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id VARCHAR(64) NOT NULL,
    user_id VARCHAR(64),
    kind VARCHAR(64) NOT NULL,
    payload TEXT,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_session_id ON episodic_events(session_id);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON episodic_events(created_at);
`

	createAuditLogSQL = `
CREATE TABLE IF NOT EXISTS audit_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation VARCHAR(64) NOT NULL,
    detail TEXT,
    created_at TIMESTAMP NOT NULL
);
`

	createProceduralItemsSQL = `
CREATE TABLE IF NOT EXISTS procedural_items (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description TEXT,
    steps TEXT,
    tags TEXT,
    created_at TIMESTAMP NOT NULL
);
`

	createWorkingMemorySQL = `
CREATE TABLE IF NOT EXISTS working_memory (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id VARCHAR(64) NOT NULL,
    entry TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_wm_user_id ON working_memory(user_id);
`
)

// initSchema creates all tables, adjusting autoincrement syntax per
// dialect.
func (s *Store) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		createMemoryItemsSQL,
		createEmbeddingsSQL,
		createSemanticFactsSQL,
		createEpisodicEventsSQL,
		createAuditLogSQL,
		createProceduralItemsSQL,
		createWorkingMemorySQL,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, s.dialectDDL(stmt)); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// dialectDDL rewrites sqlite DDL for postgres and mysql.
func (s *Store) dialectDDL(ddl string) string {
	switch s.dialect {
	case "postgres":
		return strings.ReplaceAll(ddl, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
	case "mysql":
		return strings.ReplaceAll(ddl, "INTEGER PRIMARY KEY AUTOINCREMENT", "BIGINT PRIMARY KEY AUTO_INCREMENT")
	default:
		return ddl
	}
}

// rebind converts ? placeholders to $N for postgres. sqlite and mysql
// keep the ? form.
func (s *Store) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
