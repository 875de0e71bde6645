package memory

import (
	"database/sql"
	"fmt"
	"time"
)

// TrustStateFor returns the persisted trust record for a domain,
// creating it lazily at level 0 on first reference.
func (s *Store) TrustStateFor(domain string) (TrustState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if domain == "" {
		return TrustState{}, fmt.Errorf("trust domain is required")
	}

	st, err := s.scanTrustState(s.db.QueryRow(
		`SELECT domain, level, successes, failures, consecutive_successes, consecutive_failures,
			last_success_at, last_failure_at, updated_at
		 FROM trust WHERE domain = ?`, domain))
	if err == nil {
		return st, nil
	}
	if err != sql.ErrNoRows {
		return TrustState{}, fmt.Errorf("failed to read trust state for %q: %w", domain, err)
	}

	now := time.Now()
	_, err = s.db.Exec(
		`INSERT INTO trust (domain, level, updated_at) VALUES (?, 0, ?)`,
		domain, fmtTime(now),
	)
	if err != nil {
		return TrustState{}, fmt.Errorf("failed to create trust state for %q: %w", domain, err)
	}
	return TrustState{Domain: domain, UpdatedAt: now}, nil
}

// SaveTrustState persists a mutated trust record.
func (s *Store) SaveTrustState(st TrustState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastSuccess, lastFailure any
	if st.LastSuccessAt != nil {
		lastSuccess = fmtTime(*st.LastSuccessAt)
	}
	if st.LastFailureAt != nil {
		lastFailure = fmtTime(*st.LastFailureAt)
	}

	_, err := s.db.Exec(
		`INSERT INTO trust (domain, level, successes, failures, consecutive_successes,
			consecutive_failures, last_success_at, last_failure_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(domain) DO UPDATE SET
			level = excluded.level,
			successes = excluded.successes,
			failures = excluded.failures,
			consecutive_successes = excluded.consecutive_successes,
			consecutive_failures = excluded.consecutive_failures,
			last_success_at = excluded.last_success_at,
			last_failure_at = excluded.last_failure_at,
			updated_at = excluded.updated_at`,
		st.Domain, st.Level, st.Successes, st.Failures, st.ConsecutiveSuccess,
		st.ConsecutiveFailures, lastSuccess, lastFailure, fmtTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save trust state for %q: %w", st.Domain, err)
	}
	return nil
}

// AllTrustStates returns every domain's trust record.
func (s *Store) AllTrustStates() ([]TrustState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT domain, level, successes, failures, consecutive_successes, consecutive_failures,
			last_success_at, last_failure_at, updated_at
		 FROM trust ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trust states: %w", err)
	}
	defer rows.Close()

	var out []TrustState
	for rows.Next() {
		st, err := s.scanTrustState(rows)
		if err != nil {
			continue
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) scanTrustState(row rowScanner) (TrustState, error) {
	var st TrustState
	var lastSuccess, lastFailure sql.NullString
	var updatedAt string
	err := row.Scan(&st.Domain, &st.Level, &st.Successes, &st.Failures,
		&st.ConsecutiveSuccess, &st.ConsecutiveFailures, &lastSuccess, &lastFailure, &updatedAt)
	if err != nil {
		return TrustState{}, err
	}
	if lastSuccess.Valid {
		t := parseTime(lastSuccess.String)
		st.LastSuccessAt = &t
	}
	if lastFailure.Valid {
		t := parseTime(lastFailure.String)
		st.LastFailureAt = &t
	}
	st.UpdatedAt = parseTime(updatedAt)
	return st, nil
}
