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
	"time"
)

// WMAdd appends entries to the user's persisted working-memory ring and
// trims the oldest rows beyond capacity.
func (s *Store) WMAdd(ctx context.Context, userID string, entries []string, capacity int) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if capacity <= 0 {
		capacity = s.cfg.WorkingMemorySlots
	}
	if len(entries) == 0 {
		return nil
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(qctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i, entry := range entries {
		// Nanosecond offsets keep insertion order stable on backends
		// with coarse timestamp resolution.
		_, err = tx.ExecContext(qctx, s.rebind(`
INSERT INTO working_memory (user_id, entry, created_at) VALUES (?, ?, ?)`),
			userID, entry, now.Add(time.Duration(i)*time.Nanosecond))
		if err != nil {
			return fmt.Errorf("failed to insert working memory entry: %w", err)
		}
	}

	// Trim to capacity, oldest first.
	_, err = tx.ExecContext(qctx, s.rebind(`
DELETE FROM working_memory WHERE user_id = ? AND id NOT IN (
    SELECT id FROM (
        SELECT id FROM working_memory WHERE user_id = ? ORDER BY id DESC LIMIT ?
    ) keep
)`), userID, userID, capacity)
	if err != nil {
		return fmt.Errorf("failed to trim working memory: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit working memory update: %w", err)
	}
	return nil
}

// WMGet returns up to capacity entries for the user, oldest first.
func (s *Store) WMGet(ctx context.Context, userID string, capacity int) ([]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if capacity <= 0 {
		capacity = s.cfg.WorkingMemorySlots
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, s.rebind(`
SELECT entry FROM (
    SELECT id, entry FROM working_memory WHERE user_id = ? ORDER BY id DESC LIMIT ?
) recent ORDER BY id ASC`), userID, capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to query working memory: %w", err)
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, fmt.Errorf("failed to scan working memory entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// WMClear removes all working-memory entries for the user and reports
// how many were dropped.
func (s *Store) WMClear(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, fmt.Errorf("user ID is required")
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(qctx, s.rebind(`DELETE FROM working_memory WHERE user_id = ?`), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear working memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}
