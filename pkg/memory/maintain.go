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
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cortexkit/cortex/pkg/llm"
)

// MaintenanceReport summarizes one Maintain run.
type MaintenanceReport struct {
	Consolidated int  `json:"consolidated"`
	Pruned       int  `json:"pruned"`
	Rebuilt      bool `json:"rebuilt"`
	Reindexed    int  `json:"reindexed"`
}

// Maintain runs the full maintenance cycle: consolidate recent episodic
// items into semantic facts, prune stale low-importance items, and
// rebuild the index when the tombstone share crosses the threshold.
func (s *Store) Maintain(ctx context.Context) (*MaintenanceReport, error) {
	report := &MaintenanceReport{}

	consolidated, err := s.Consolidate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to consolidate: %w", err)
	}
	report.Consolidated = consolidated

	pruned, err := s.Prune(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prune: %w", err)
	}
	report.Pruned = pruned

	rebuilt, err := s.MaybeRebuildOnTombstones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check tombstone rebuild: %w", err)
	}
	report.Rebuilt = rebuilt
	if rebuilt {
		var count int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`)
		if err := row.Scan(&count); err == nil {
			report.Reindexed = count
		}
	}

	s.audit(ctx, "maintain", fmt.Sprintf("consolidated=%d pruned=%d rebuilt=%t", consolidated, pruned, rebuilt))
	return report, nil
}

// Consolidate groups recent episodic items by their leading tag and
// distills each group of two or more into a semantic fact. Summaries use
// the LLM gateway when attached, extraction otherwise. Near-duplicate
// summaries below the novelty floor are skipped. Returns the number of
// facts created.
func (s *Store) Consolidate(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.ConsolidationWindow)

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, s.rebind(`
SELECT id, raw_text, encrypted, summary, tags
FROM memory_items
WHERE kind = ? AND tombstoned = 0 AND consent = 1 AND created_at >= ?
ORDER BY created_at ASC`), string(KindEpisodic), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to query episodic items: %w", err)
	}

	type source struct {
		id      string
		summary string
	}
	groups := make(map[string][]source)
	for rows.Next() {
		var (
			id        string
			rawText   string
			encrypted int
			summary   sql.NullString
			tagsJSON  sql.NullString
		)
		if err := rows.Scan(&id, &rawText, &encrypted, &summary, &tagsJSON); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan episodic item: %w", err)
		}

		text := summary.String
		if text == "" && encrypted == 0 {
			text = summarize(rawText)
		}
		if text == "" {
			continue
		}

		var tags []string
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &tags); err != nil {
				rows.Close()
				return 0, fmt.Errorf("failed to parse tags: %w", err)
			}
		}
		topic := "general"
		if len(tags) > 0 && tags[0] != "" {
			topic = strings.ToLower(tags[0])
		}
		groups[topic] = append(groups[topic], source{id: id, summary: text})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	topics := make([]string, 0, len(groups))
	for topic := range groups {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	created := 0
	for _, topic := range topics {
		sources := groups[topic]
		if len(sources) < 2 {
			continue
		}

		summaries := make([]string, len(sources))
		ids := make([]string, len(sources))
		for i, src := range sources {
			summaries[i] = src.summary
			ids[i] = src.id
		}

		fact := s.summarizeGroup(ctx, topic, summaries)
		if strings.TrimSpace(fact) == "" {
			continue
		}

		novelty, err := s.Novelty(ctx, fact)
		if err != nil {
			return created, err
		}
		if novelty < s.cfg.NoveltyFloor {
			continue
		}

		sourceJSON, err := json.Marshal(ids)
		if err != nil {
			return created, fmt.Errorf("failed to marshal source IDs: %w", err)
		}

		fctx, fcancel := context.WithTimeout(ctx, queryTimeout)
		_, err = s.db.ExecContext(fctx, s.rebind(`
INSERT INTO semantic_facts (id, fact, source_ids, created_at)
VALUES (?, ?, ?, ?)`),
			uuid.NewString(), fact, string(sourceJSON), time.Now().UTC())
		fcancel()
		if err != nil {
			return created, fmt.Errorf("failed to insert semantic fact: %w", err)
		}

		if _, err := s.Write(ctx, WriteRequest{
			Kind:       KindSemantic,
			Text:       fact,
			Tags:       []string{"consolidated", topic},
			Importance: 0.6,
			Consent:    true,
			Privacy:    PrivacyLow,
		}); err != nil {
			return created, fmt.Errorf("failed to write consolidated memory: %w", err)
		}
		created++
	}

	if created > 0 {
		s.audit(ctx, "consolidate", fmt.Sprintf("facts=%d", created))
	}
	return created, nil
}

// summarizeGroup distills group summaries into one fact. Gateway
// failures fall back to extraction.
func (s *Store) summarizeGroup(ctx context.Context, topic string, summaries []string) string {
	if s.gateway != nil {
		resp, err := s.gateway.Generate(ctx, &llm.Request{
			System:      "You distill related observations into one concise factual statement. Reply with the statement only.",
			Prompt:      fmt.Sprintf("Topic: %s\nObservations:\n- %s", topic, strings.Join(summaries, "\n- ")),
			Temperature: 0.3,
			MaxTokens:   200,
		})
		if err == nil && strings.TrimSpace(resp.Text) != "" {
			return strings.TrimSpace(resp.Text)
		}
		if err != nil {
			slog.Warn("Consolidation summary failed, falling back to extraction", "topic", topic, "error", err)
		}
	}
	return fmt.Sprintf("%s: %s", topic, strings.Join(summaries, " "))
}

// Prune removes episodic items older than the configured age whose
// importance sits below the ceiling, along with their chunks and index
// entries. Returns the number of items removed.
func (s *Store) Prune(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.PruneMaxAgeDays)

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, s.rebind(`
SELECT id FROM memory_items
WHERE kind = ? AND created_at < ? AND importance < ?`),
		string(KindEpisodic), cutoff, s.cfg.PruneImportanceCeiling)
	if err != nil {
		return 0, fmt.Errorf("failed to query prunable items: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan prunable item: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return 0, fmt.Errorf("failed to prune item %s: %w", id, err)
		}
	}

	if len(ids) > 0 {
		s.audit(ctx, "prune", fmt.Sprintf("items=%d", len(ids)))
	}
	return len(ids), nil
}

// RebuildIndex drops and recreates the vector collection from the live
// consented chunks in SQL. Returns the number of chunks reindexed.
func (s *Store) RebuildIndex(ctx context.Context) (int, error) {
	if err := s.vector.DeleteCollection(ctx, Collection); err != nil {
		return 0, fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := s.vector.CreateCollection(ctx, Collection, s.embedder.Dimension()); err != nil {
		return 0, fmt.Errorf("failed to recreate collection: %w", err)
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, `
SELECT e.id, e.memory_id, e.position, e.chunk_text, m.kind
FROM embeddings e
JOIN memory_items m ON m.id = e.memory_id
WHERE m.tombstoned = 0 AND m.consent = 1
ORDER BY e.memory_id, e.position`)
	if err != nil {
		return 0, fmt.Errorf("failed to query chunks: %w", err)
	}

	type chunk struct {
		id       string
		memoryID string
		position int
		text     string
		kind     string
	}
	var chunks []chunk
	for rows.Next() {
		var c chunk
		if err := rows.Scan(&c.id, &c.memoryID, &c.position, &c.text, &c.kind); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(chunks) == 0 {
		s.audit(ctx, "rebuild_index", "chunks=0")
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}
	for i, c := range chunks {
		meta := map[string]any{
			"memory_id": c.memoryID,
			"position":  c.position,
			"kind":      c.kind,
			"content":   c.text,
		}
		if err := s.vector.Upsert(ctx, Collection, c.id, vectors[i], meta); err != nil {
			return 0, fmt.Errorf("failed to upsert chunk %s: %w", c.id, err)
		}
	}

	s.audit(ctx, "rebuild_index", fmt.Sprintf("chunks=%d", len(chunks)))
	return len(chunks), nil
}

// MaybeRebuildOnTombstones purges tombstoned items and rebuilds the
// index once the tombstone share reaches the configured threshold.
// Purging at rebuild keeps the share metric meaningful across runs.
func (s *Store) MaybeRebuildOnTombstones(ctx context.Context) (bool, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total, tombstoned int
	row := s.db.QueryRowContext(qctx, `SELECT COUNT(*), COALESCE(SUM(tombstoned), 0) FROM memory_items`)
	if err := row.Scan(&total, &tombstoned); err != nil {
		return false, fmt.Errorf("failed to count tombstones: %w", err)
	}
	if total == 0 || float64(tombstoned)/float64(total) < s.cfg.TombstoneRebuildThreshold {
		return false, nil
	}

	rows, err := s.db.QueryContext(qctx, `SELECT id FROM memory_items WHERE tombstoned = 1`)
	if err != nil {
		return false, fmt.Errorf("failed to query tombstoned items: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return false, fmt.Errorf("failed to scan tombstoned item: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return false, err
	}
	rows.Close()

	for _, id := range ids {
		if err := s.Delete(ctx, id); err != nil {
			return false, fmt.Errorf("failed to purge tombstoned item %s: %w", id, err)
		}
	}

	if _, err := s.RebuildIndex(ctx); err != nil {
		return false, err
	}
	s.audit(ctx, "tombstone_rebuild", fmt.Sprintf("purged=%d", len(ids)))
	return true, nil
}

// Export writes every stored item as one JSON object per line,
// decrypting text where needed. Returns the number of items written.
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, `SELECT id FROM memory_items ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return 0, fmt.Errorf("failed to query memory items: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan memory item: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	enc := json.NewEncoder(w)
	count := 0
	for _, id := range ids {
		item, err := s.Get(ctx, id)
		if err != nil {
			return count, err
		}
		if err := enc.Encode(item); err != nil {
			return count, fmt.Errorf("failed to encode item %s: %w", id, err)
		}
		count++
	}

	s.audit(ctx, "export", fmt.Sprintf("items=%d", count))
	return count, nil
}

// Stats reports store contents and retrieval counters.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stats := &Stats{ItemsByKind: make(map[Kind]int)}

	rows, err := s.db.QueryContext(qctx, `SELECT kind, COUNT(*) FROM memory_items GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count items: %w", err)
	}
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan item count: %w", err)
		}
		stats.ItemsByKind[Kind(kind)] = count
		stats.TotalItems += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	var tombstoned int
	if err := s.db.QueryRowContext(qctx, `SELECT COALESCE(SUM(tombstoned), 0) FROM memory_items`).Scan(&tombstoned); err != nil {
		return nil, fmt.Errorf("failed to count tombstones: %w", err)
	}
	if stats.TotalItems > 0 {
		stats.TombstoneShare = float64(tombstoned) / float64(stats.TotalItems)
	}

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM embeddings`, &stats.TotalChunks},
		{`SELECT COUNT(*) FROM semantic_facts`, &stats.SemanticFacts},
		{`SELECT COUNT(*) FROM episodic_events`, &stats.Events},
		{`SELECT COUNT(*) FROM procedural_items`, &stats.Procedural},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(qctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count rows: %w", err)
		}
	}

	s.mu.Lock()
	stats.Hits = s.hits
	stats.Misses = s.misses
	s.mu.Unlock()

	return stats, nil
}
