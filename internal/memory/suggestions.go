package memory

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Settings keys for the proactive rate-limit state. Kept in the
// settings table so the counter, the day it belongs to, and the
// cooldown anchor can be updated in the same transaction as the
// suggestion row.
const (
	settingDailyCount    = "proactive.daily_count"
	settingCountDate     = "proactive.count_date"
	settingLastSuggestAt = "proactive.last_suggested_at"
)

// ProactiveState is the persisted rate-limit state for the proactive
// engine: how many suggestions were made today, which local day the
// counter belongs to, and when the last suggestion was made in any
// domain.
type ProactiveState struct {
	DailyCount       int
	CountDate        string // local date "2006-01-02" the counter belongs to
	LastSuggestionAt *time.Time
}

// ProactiveStateNow reads the proactive rate-limit state.
func (s *Store) ProactiveStateNow() (ProactiveState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st ProactiveState
	rows, err := s.db.Query(
		`SELECT key, value FROM settings WHERE key IN (?, ?, ?)`,
		settingDailyCount, settingCountDate, settingLastSuggestAt,
	)
	if err != nil {
		return ProactiveState{}, fmt.Errorf("failed to read proactive state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			continue
		}
		switch key {
		case settingDailyCount:
			st.DailyCount, _ = strconv.Atoi(value)
		case settingCountDate:
			st.CountDate = value
		case settingLastSuggestAt:
			if t := parseTime(value); !t.IsZero() {
				st.LastSuggestionAt = &t
			}
		}
	}
	return st, rows.Err()
}

// CreateSuggestion writes the suggestion row and the updated
// rate-limit state in one transaction, so the daily counter and
// cooldown anchor can never drift from the suggestions actually made.
func (s *Store) CreateSuggestion(sg Suggestion, newCount int, countDate string, last time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sg.ID == "" {
		return fmt.Errorf("suggestion id is required")
	}
	if sg.Message == "" {
		return fmt.Errorf("suggestion message is required")
	}
	if sg.Status == "" {
		sg.Status = SuggestionPending
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin suggestion write: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO suggestions (id, message, category, confidence, action, domain, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sg.ID, sg.Message, sg.Category, sg.Confidence, sg.Action, sg.Domain, sg.Status,
		fmtTime(sg.CreatedAt), fmtTime(sg.ExpiresAt),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to store suggestion: %w", err)
	}

	if err := setSettingTx(tx, settingDailyCount, strconv.Itoa(newCount)); err != nil {
		tx.Rollback()
		return err
	}
	if err := setSettingTx(tx, settingCountDate, countDate); err != nil {
		tx.Rollback()
		return err
	}
	if err := setSettingTx(tx, settingLastSuggestAt, fmtTime(last)); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit suggestion: %w", err)
	}

	s.log.Debug("suggestion created",
		zap.String("id", sg.ID),
		zap.String("domain", sg.Domain),
		zap.Int("daily_count", newCount))
	return nil
}

// GetSuggestion returns one suggestion by id.
func (s *Store) GetSuggestion(id string) (Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sg, err := s.scanSuggestion(s.db.QueryRow(
		`SELECT id, message, category, confidence, action, domain, status, created_at, expires_at
		 FROM suggestions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Suggestion{}, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to read suggestion %s: %w", id, err)
	}
	return sg, nil
}

// RecentSuggestions returns the newest n suggestions across all
// domains. The proactive engine shows these to the model so it does
// not repeat itself.
func (s *Store) RecentSuggestions(n int) ([]Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		n = 5
	}
	rows, err := s.db.Query(
		`SELECT id, message, category, confidence, action, domain, status, created_at, expires_at
		 FROM suggestions ORDER BY created_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	defer rows.Close()

	var out []Suggestion
	for rows.Next() {
		sg, err := s.scanSuggestion(rows)
		if err != nil {
			continue
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

// SetSuggestionStatus transitions a suggestion's lifecycle state.
func (s *Store) SetSuggestionStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch status {
	case SuggestionPending, SuggestionAccepted, SuggestionDismissed, SuggestionExpired:
	default:
		return fmt.Errorf("invalid suggestion status %q", status)
	}

	res, err := s.db.Exec(`UPDATE suggestions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update suggestion %s: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	return nil
}

// ExpireSuggestions marks pending suggestions past their deadline as
// expired and returns how many were transitioned.
func (s *Store) ExpireSuggestions(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE suggestions SET status = ? WHERE status = ? AND expires_at <= ?`,
		SuggestionExpired, SuggestionPending, fmtTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire suggestions: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected > 0 {
		s.log.Debug("suggestions expired", zap.Int64("count", affected))
	}
	return int(affected), nil
}

func (s *Store) scanSuggestion(row rowScanner) (Suggestion, error) {
	var sg Suggestion
	var createdAt, expiresAt string
	err := row.Scan(&sg.ID, &sg.Message, &sg.Category, &sg.Confidence, &sg.Action,
		&sg.Domain, &sg.Status, &createdAt, &expiresAt)
	if err != nil {
		return Suggestion{}, err
	}
	sg.CreatedAt = parseTime(createdAt)
	sg.ExpiresAt = parseTime(expiresAt)
	return sg, nil
}
