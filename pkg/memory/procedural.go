package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RegisterProcedural stores a named procedure and returns its ID.
func (s *Store) RegisterProcedural(ctx context.Context, name, description string, steps, tags []string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("procedure name is required")
	}

	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("failed to marshal steps: %w", err)
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags: %w", err)
	}

	id := uuid.NewString()
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(qctx, s.rebind(`
INSERT INTO procedural_items (id, name, description, steps, tags, created_at)
VALUES (?, ?, ?, ?, ?, ?)`),
		id, name, description, string(stepsJSON), string(tagsJSON), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert procedural item: %w", err)
	}

	s.audit(ctx, "register_procedural", fmt.Sprintf("id=%s name=%s", id, name))
	return id, nil
}

// ListProcedural returns registered procedures, newest first. A
// non-empty tag keeps only procedures carrying it.
func (s *Store) ListProcedural(ctx context.Context, tag string) ([]ProceduralItem, error) {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, `
SELECT id, name, description, steps, tags, created_at
FROM procedural_items ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query procedural items: %w", err)
	}
	defer rows.Close()

	var items []ProceduralItem
	for rows.Next() {
		var (
			item        ProceduralItem
			description sql.NullString
			stepsJSON   sql.NullString
			tagsJSON    sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Name, &description, &stepsJSON, &tagsJSON, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan procedural item: %w", err)
		}
		item.Description = description.String
		if stepsJSON.Valid && stepsJSON.String != "" {
			if err := json.Unmarshal([]byte(stepsJSON.String), &item.Steps); err != nil {
				return nil, fmt.Errorf("failed to parse steps: %w", err)
			}
		}
		if tagsJSON.Valid && tagsJSON.String != "" {
			if err := json.Unmarshal([]byte(tagsJSON.String), &item.Tags); err != nil {
				return nil, fmt.Errorf("failed to parse tags: %w", err)
			}
		}
		if tag != "" && !hasTag(item.Tags, tag) {
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
