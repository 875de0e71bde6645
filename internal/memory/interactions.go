package memory

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

func validFeedback(tag string) bool {
	switch tag {
	case FeedbackPositive, FeedbackNegative, FeedbackConfused, FeedbackRetry:
		return true
	}
	return false
}

// StoreInteraction records one exchange and returns its id. Feedback
// is optional at creation time; it may be attached later.
func (s *Store) StoreInteraction(in Interaction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.UserInput == "" {
		return 0, fmt.Errorf("interaction user input is required")
	}
	if in.Feedback != "" && !validFeedback(in.Feedback) {
		return 0, fmt.Errorf("invalid feedback tag %q", in.Feedback)
	}
	if in.Metadata == nil {
		in.Metadata = map[string]any{}
	}
	meta, err := json.Marshal(in.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to encode interaction metadata: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO interactions (user_input, response, feedback, session_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.UserInput, in.Response, in.Feedback, in.SessionID, string(meta), fmtTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to store interaction: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// RecordFeedback attaches a feedback tag to an existing interaction.
func (s *Store) RecordFeedback(id int64, feedback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !validFeedback(feedback) {
		return fmt.Errorf("invalid feedback tag %q", feedback)
	}

	res, err := s.db.Exec(`UPDATE interactions SET feedback = ? WHERE id = ?`, feedback, id)
	if err != nil {
		return fmt.Errorf("failed to record feedback for interaction %d: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("interaction %d: %w", id, ErrNotFound)
	}

	s.log.Debug("feedback recorded", zap.Int64("interaction", id), zap.String("feedback", feedback))
	return nil
}

// RecentInteractions returns the newest n exchanges.
func (s *Store) RecentInteractions(n int) ([]Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentInteractionsLocked(n)
}

func (s *Store) recentInteractionsLocked(n int) ([]Interaction, error) {
	if n <= 0 {
		n = 5
	}
	return s.queryInteractions(
		`SELECT id, user_input, response, feedback, session_id, metadata, created_at
		 FROM interactions ORDER BY created_at DESC, id DESC LIMIT ?`,
		n,
	)
}

// ProblematicInteractions returns exchanges with negative, confused or
// retry feedback within the lookback window. This is the feed for the
// reflexion cycle.
func (s *Store) ProblematicInteractions(hours, limit int) ([]Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if hours <= 0 {
		hours = 24
	}
	if limit <= 0 {
		limit = 10
	}
	cutoff := fmtTime(time.Now().Add(-time.Duration(hours) * time.Hour))

	return s.queryInteractions(
		`SELECT id, user_input, response, feedback, session_id, metadata, created_at
		 FROM interactions
		 WHERE feedback IN (?, ?, ?) AND created_at >= ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		FeedbackNegative, FeedbackConfused, FeedbackRetry, cutoff, limit,
	)
}

func (s *Store) queryInteractions(query string, args ...any) ([]Interaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("interaction query failed: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		var meta, createdAt string
		if err := rows.Scan(&in.ID, &in.UserInput, &in.Response, &in.Feedback,
			&in.SessionID, &meta, &createdAt); err != nil {
			continue
		}
		in.Metadata = map[string]any{}
		_ = json.Unmarshal([]byte(meta), &in.Metadata)
		in.CreatedAt = parseTime(createdAt)
		out = append(out, in)
	}
	return out, rows.Err()
}
