package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LogEvent appends an entry to the session event log. An empty session
// ID starts a new session; the session ID in effect is returned.
func (s *Store) LogEvent(ctx context.Context, sessionID, userID, kind string, payload map[string]any) (string, error) {
	if kind == "" {
		return "", fmt.Errorf("event kind is required")
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(qctx, s.rebind(`
INSERT INTO episodic_events (session_id, user_id, kind, payload, created_at)
VALUES (?, ?, ?, ?, ?)`),
		sessionID, userID, kind, string(payloadJSON), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}
	return sessionID, nil
}

// GetSessionEvents returns all events for a session in chronological
// order.
func (s *Store) GetSessionEvents(ctx context.Context, sessionID string) ([]Event, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, s.rebind(`
SELECT id, session_id, user_id, kind, payload, created_at
FROM episodic_events WHERE session_id = ? ORDER BY id ASC`), sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// GetTail returns the latest n events across all sessions in
// chronological order.
func (s *Store) GetTail(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = 10
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(qctx, s.rebind(`
SELECT id, session_id, user_id, kind, payload, created_at FROM (
    SELECT id, session_id, user_id, kind, payload, created_at
    FROM episodic_events ORDER BY id DESC LIMIT ?
) recent ORDER BY id ASC`), n)
	if err != nil {
		return nil, fmt.Errorf("failed to query event tail: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// DeleteSession removes all events for a session and reports how many
// were dropped.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) (int, error) {
	if sessionID == "" {
		return 0, fmt.Errorf("session ID is required")
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(qctx, s.rebind(`DELETE FROM episodic_events WHERE session_id = ?`), sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	s.audit(ctx, "delete_session", fmt.Sprintf("session_id=%s events=%d", sessionID, n))
	return int(n), nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			ev          Event
			userID      sql.NullString
			payloadJSON sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &userID, &ev.Kind, &payloadJSON, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.UserID = userID.String
		if payloadJSON.Valid && payloadJSON.String != "" {
			if err := json.Unmarshal([]byte(payloadJSON.String), &ev.Payload); err != nil {
				return nil, fmt.Errorf("failed to parse event payload: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
