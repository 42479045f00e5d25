package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cortexkit/cortex/pkg/precontext"
)

// Store feeds the preprocessor directly; WMAdd and WMGet already match.
var _ precontext.MemorySource = (*Store)(nil)

// RetrieveSnippets returns up to k relevant chunk texts for the query.
func (s *Store) RetrieveSnippets(ctx context.Context, query string, k int) ([]string, error) {
	hits, err := s.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}
	snippets := make([]string, len(hits))
	for i, hit := range hits {
		snippets[i] = hit.ChunkText
	}
	return snippets, nil
}

// RecentEpisodes summarizes the n most recent session events as
// "kind: payload" lines.
func (s *Store) RecentEpisodes(ctx context.Context, n int) ([]string, error) {
	events, err := s.GetTail(ctx, n)
	if err != nil {
		return nil, err
	}
	episodes := make([]string, 0, len(events))
	for _, ev := range events {
		line := ev.Kind
		if len(ev.Payload) > 0 {
			if text, ok := ev.Payload["text"].(string); ok && text != "" {
				line = fmt.Sprintf("%s: %s", ev.Kind, text)
			} else if payload, err := json.Marshal(ev.Payload); err == nil {
				line = fmt.Sprintf("%s: %s", ev.Kind, payload)
			}
		}
		episodes = append(episodes, line)
	}
	return episodes, nil
}

// ProceduralHints lists up to limit registered procedure names, newest
// first.
func (s *Store) ProceduralHints(ctx context.Context, limit int) ([]string, error) {
	items, err := s.ListProcedural(ctx, "")
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	hints := make([]string, len(items))
	for i, item := range items {
		hints[i] = item.Name
	}
	return hints, nil
}
