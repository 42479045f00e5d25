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

// Package memory implements the layered long-term memory store:
// episodic, semantic, reflective, and procedural items persisted in SQL,
// with chunk embeddings mirrored into the vector index for similarity
// retrieval.
//
// Writes are consent-gated and novelty-gated; chunk text is PII-redacted
// before it reaches the index, and raw text can be encrypted at rest.
// Retrieval blends vector distance with importance and recency. The
// store also carries the session event log, the persisted working-memory
// ring, and the procedural registry.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/embedder"
	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/vector"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Collection is the vector index collection holding memory chunks.
const Collection = "cortex_memory"

const queryTimeout = 30 * time.Second

// Store is the persistent memory backend. SQL holds the items, events,
// and registries; the vector provider holds chunk embeddings for
// similarity search.
type Store struct {
	db       *sql.DB
	dialect  string
	cfg      *config.MemoryConfig
	embedder embedder.Embedder
	vector   vector.Provider
	gateway  llm.Provider
	key      []byte

	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewStore wraps an existing database handle. The dialect must be one of
// "sqlite", "postgres", or "mysql".
func NewStore(db *sql.DB, dialect string, cfg *config.MemoryConfig, emb embedder.Embedder, vec vector.Provider) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if emb == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg == nil {
		cfg = &config.MemoryConfig{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory configuration: %w", err)
	}
	if vec == nil {
		vec = vector.NilProvider{}
	}

	s := &Store{
		db:       db,
		dialect:  dialect,
		cfg:      cfg,
		embedder: emb,
		vector:   vec,
	}
	if cfg.EncryptionKey != "" {
		s.key = []byte(cfg.EncryptionKey)
	}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if err := vec.CreateCollection(ctx, Collection, emb.Dimension()); err != nil {
		return nil, fmt.Errorf("failed to create vector collection: %w", err)
	}

	return s, nil
}

// Open connects to the configured database and returns a ready store.
// For sqlite the parent directory is created on demand.
func Open(cfg *config.MemoryConfig, emb embedder.Embedder, vec vector.Provider) (*Store, error) {
	if cfg == nil {
		cfg = &config.MemoryConfig{}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid memory configuration: %w", err)
	}

	driverName := string(cfg.Driver)
	if driverName == "sqlite" {
		driverName = "sqlite3"
		if dir := filepath.Dir(cfg.DSN); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create memory directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	s, err := NewStore(db, string(cfg.Driver), cfg, emb, vec)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetGateway attaches an LLM provider used for abstractive consolidation
// summaries. Without one, consolidation falls back to extraction.
func (s *Store) SetGateway(p llm.Provider) {
	s.gateway = p
}

// Write persists a memory item. The request must carry consent; text is
// chunked, redacted, embedded, and indexed. Returns the new item ID.
func (s *Store) Write(ctx context.Context, req WriteRequest) (string, error) {
	if !req.Consent {
		return "", ErrConsentRequired
	}
	if !ValidKind(req.Kind) {
		return "", fmt.Errorf("invalid memory kind %q", req.Kind)
	}
	if strings.TrimSpace(req.Text) == "" {
		return "", fmt.Errorf("memory text is required")
	}

	importance := clamp01(req.Importance)
	privacy := req.Privacy
	if privacy == "" {
		privacy = PrivacyLow
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	chunks := ChunkText(req.Text, s.cfg.ChunkSize)
	redacted := make([]string, len(chunks))
	for i, c := range chunks {
		redacted[i] = RedactPII(c)
	}

	stored := req.Text
	encrypted := 0
	if s.key != nil {
		enc, err := encryptText(s.key, req.Text)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt memory text: %w", err)
		}
		stored = enc
		encrypted = 1
	}

	tagsJSON, err := json.Marshal(req.Tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags: %w", err)
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(qctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// The summary is a plaintext derivative like the chunks, so it gets
	// the same redaction.
	_, err = tx.ExecContext(qctx, s.rebind(`
INSERT INTO memory_items (id, kind, raw_text, encrypted, summary, tags, importance, consent, privacy, tombstoned, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`),
		id, string(req.Kind), stored, encrypted, RedactPII(summarize(req.Text)), string(tagsJSON), importance, 1, string(privacy), now)
	if err != nil {
		return "", fmt.Errorf("failed to insert memory item: %w", err)
	}

	for i, chunk := range redacted {
		_, err = tx.ExecContext(qctx, s.rebind(`
INSERT INTO embeddings (id, memory_id, position, chunk_text, created_at)
VALUES (?, ?, ?, ?, ?)`),
			chunkID(id, i), id, i, chunk, now)
		if err != nil {
			return "", fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit memory write: %w", err)
	}

	if err := s.indexChunks(ctx, id, req.Kind, redacted); err != nil {
		// The SQL row is the source of truth; the index can be rebuilt.
		slog.Warn("Memory chunk indexing failed", "memory_id", id, "error", err)
		s.audit(ctx, "index_error", fmt.Sprintf("memory_id=%s error=%v", id, err))
	}

	s.audit(ctx, "write", fmt.Sprintf("id=%s kind=%s chunks=%d", id, req.Kind, len(redacted)))
	return id, nil
}

// indexChunks embeds redacted chunks and upserts them into the vector
// index.
func (s *Store) indexChunks(ctx context.Context, memoryID string, kind Kind, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	for i, vec := range vectors {
		meta := map[string]any{
			"memory_id": memoryID,
			"position":  i,
			"kind":      string(kind),
			"content":   chunks[i],
		}
		if err := s.vector.Upsert(ctx, Collection, chunkID(memoryID, i), vec, meta); err != nil {
			return fmt.Errorf("failed to upsert chunk %d: %w", i, err)
		}
	}
	return nil
}

// Retrieve finds the k best chunks for the query. Results blend vector
// distance with item importance and recency; items without consent,
// tombstoned items, and high/sensitive privacy items never surface.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = s.cfg.TopK
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Overfetch so that privacy and consent filtering still leaves k.
	results, err := s.vector.Search(ctx, Collection, queryVec, k*3)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector index: %w", err)
	}

	now := time.Now().UTC()
	items := make(map[string]*Item)
	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		memID, _ := res.Metadata["memory_id"].(string)
		if memID == "" {
			memID = parentID(res.ID)
		}
		if memID == "" {
			continue
		}

		item, ok := items[memID]
		if !ok {
			item, err = s.Get(ctx, memID)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			items[memID] = item
		}
		if !item.Consent || item.Tombstoned {
			continue
		}
		if item.Privacy == PrivacyHigh || item.Privacy == PrivacySensitive {
			continue
		}

		distance := math.Max(0, 1-float64(res.Score))
		hits = append(hits, Hit{
			MemoryID:   memID,
			ChunkText:  res.Content,
			Distance:   distance,
			Importance: item.Importance,
			Score:      scoreCandidate(distance, item.Importance, item.CreatedAt, now),
			Kind:       item.Kind,
			CreatedAt:  item.CreatedAt,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}

	s.mu.Lock()
	if len(hits) > 0 {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()

	s.audit(ctx, "retrieve", fmt.Sprintf("k=%d hits=%d", k, len(hits)))
	return hits, nil
}

// scoreCandidate ranks a retrieval hit. Lower distance, higher
// importance, and newer items all score higher.
func scoreCandidate(distance, importance float64, createdAt, now time.Time) float64 {
	ageDays := now.Sub(createdAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	recency := math.Exp(-ageDays / 30)
	return 0.6*(1.0/(1.0+distance)) + 0.3*importance + 0.1*recency
}

// EvaluateWrite decides whether content is worth persisting. The
// weighted gate accepts when
// importance*0.5 + novelty*0.2 + utility*0.2 + emotionWeight*0.1 >= 0.5.
func (s *Store) EvaluateWrite(text string, importance, novelty, utility, emotionWeight float64) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	score := clamp01(importance)*0.5 + clamp01(novelty)*0.2 + clamp01(utility)*0.2 + clamp01(emotionWeight)*0.1
	return score >= 0.5
}

// Novelty measures how different text is from everything already
// indexed: 1 − max similarity. An empty index is maximally novel.
func (s *Store) Novelty(ctx context.Context, text string) (float64, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("failed to embed text: %w", err)
	}
	results, err := s.vector.Search(ctx, Collection, vec, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to search vector index: %w", err)
	}
	if len(results) == 0 {
		return 1.0, nil
	}
	best := float64(results[0].Score)
	for _, r := range results[1:] {
		if float64(r.Score) > best {
			best = float64(r.Score)
		}
	}
	return clamp01(1 - best), nil
}

// StoreInteraction persists a query/response exchange as one memory
// item. When allowWrite is false the novelty gate applies and
// near-duplicates return ErrLowNovelty; allowWrite forces the write
// through.
func (s *Store) StoreInteraction(ctx context.Context, kind Kind, query, response, ref string, allowWrite bool) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Q: %s\nA: %s", strings.TrimSpace(query), strings.TrimSpace(response))
	if ref != "" {
		fmt.Fprintf(&b, "\nRef: %s", ref)
	}
	text := b.String()

	if !allowWrite {
		novelty, err := s.Novelty(ctx, text)
		if err != nil {
			return "", err
		}
		if novelty < s.cfg.NoveltyFloor {
			return "", ErrLowNovelty
		}
	}

	return s.Write(ctx, WriteRequest{
		Kind:       kind,
		Text:       text,
		Tags:       []string{"interaction"},
		Importance: 0.5,
		Consent:    true,
		Privacy:    PrivacyLow,
	})
}

// Get loads one item by ID, decrypting stored text when needed.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := s.db.QueryRowContext(qctx, s.rebind(`
SELECT id, kind, raw_text, encrypted, summary, tags, importance, consent, privacy, tombstoned, created_at
FROM memory_items WHERE id = ?`), id)

	var (
		item      Item
		kind      string
		encrypted int
		summary   sql.NullString
		tagsJSON  sql.NullString
		consent   int
		privacy   string
		tomb      int
	)
	err := row.Scan(&item.ID, &kind, &item.RawText, &encrypted, &summary, &tagsJSON, &item.Importance, &consent, &privacy, &tomb, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory item: %w", err)
	}

	item.Kind = Kind(kind)
	item.Summary = summary.String
	item.Consent = consent != 0
	item.Privacy = PrivacyLevel(privacy)
	item.Tombstoned = tomb != 0
	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &item.Tags); err != nil {
			return nil, fmt.Errorf("failed to parse tags: %w", err)
		}
	}
	if encrypted != 0 {
		if s.key == nil {
			return nil, fmt.Errorf("memory item %s is encrypted but no key is configured", id)
		}
		plain, err := decryptText(s.key, item.RawText)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt memory item %s: %w", id, err)
		}
		item.RawText = plain
	}
	return &item, nil
}

// Tombstone soft-deletes an item: it stops surfacing in retrieval and
// its chunks leave the vector index, but the SQL row stays for audit.
// Crossing the tombstone share threshold triggers an index rebuild.
func (s *Store) Tombstone(ctx context.Context, id string) error {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(qctx, s.rebind(`UPDATE memory_items SET tombstoned = 1 WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to tombstone memory item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	if err := s.vector.DeleteByFilter(ctx, Collection, map[string]any{"memory_id": id}); err != nil {
		slog.Warn("Failed to drop tombstoned chunks from index", "memory_id", id, "error", err)
	}

	s.audit(ctx, "tombstone", "id="+id)

	if rebuilt, err := s.MaybeRebuildOnTombstones(ctx); err != nil {
		slog.Warn("Tombstone-triggered rebuild failed", "error", err)
	} else if rebuilt {
		slog.Info("Index rebuilt after tombstone threshold")
	}
	return nil
}

// Delete hard-removes an item, its chunks, and its index entries.
func (s *Store) Delete(ctx context.Context, id string) error {
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

	if _, err = tx.ExecContext(qctx, s.rebind(`DELETE FROM embeddings WHERE memory_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	var res sql.Result
	res, err = tx.ExecContext(qctx, s.rebind(`DELETE FROM memory_items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete memory item: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		err = ErrNotFound
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	if err := s.vector.DeleteByFilter(ctx, Collection, map[string]any{"memory_id": id}); err != nil {
		slog.Warn("Failed to drop deleted chunks from index", "memory_id", id, "error", err)
	}

	s.audit(ctx, "delete", "id="+id)
	return nil
}

// Metric returns a named counter: "hits" or "misses".
func (s *Store) Metric(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch name {
	case "hits":
		return s.hits
	case "misses":
		return s.misses
	}
	return 0
}

// audit appends to the audit log. Audit failures are logged, never
// propagated.
func (s *Store) audit(ctx context.Context, operation, detail string) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(qctx, s.rebind(`
INSERT INTO audit_log (operation, detail, created_at) VALUES (?, ?, ?)`),
		operation, detail, time.Now().UTC())
	if err != nil {
		slog.Debug("Audit log write failed", "operation", operation, "error", err)
	}
}

// Close releases the database handle. The embedder and vector provider
// are owned by the caller.
func (s *Store) Close() error {
	return s.db.Close()
}

func chunkID(memoryID string, position int) string {
	return fmt.Sprintf("%s:%d", memoryID, position)
}

// parentID recovers the memory ID from a chunk ID.
func parentID(chunkID string) string {
	if i := strings.LastIndex(chunkID, ":"); i > 0 {
		return chunkID[:i]
	}
	return ""
}

// summarize produces the short stored summary: the first sentence or
// 140 characters, whichever ends sooner.
func summarize(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?\n"); i > 0 && i < 140 {
		return strings.TrimSpace(text[:i+1])
	}
	if len(text) > 140 {
		return strings.TrimSpace(text[:140])
	}
	return text
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
