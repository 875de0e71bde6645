package memory

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// StoreFact upserts a fact keyed by (entity, fact). Re-asserting an
// existing fact raises confidence to the max of old and new; a fact is
// never silently overwritten with lower confidence. Returns the stable
// fact id.
func (s *Store) StoreFact(f Fact) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Entity == "" || f.Text == "" {
		return 0, fmt.Errorf("fact entity and text are required")
	}
	if f.Confidence <= 0 {
		f.Confidence = 0.8
	}
	if f.Source == "" {
		f.Source = "conversation"
	}

	// The max-confidence invariant is enforced by the database, not
	// by read-modify-write.
	_, err := s.db.Exec(
		`INSERT INTO facts (entity, fact, confidence, source, learned_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(entity, fact) DO UPDATE SET
			confidence = MAX(confidence, excluded.confidence),
			source = excluded.source`,
		f.Entity, f.Text, f.Confidence, f.Source, fmtTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to store fact: %w", err)
	}

	var id int64
	err = s.db.QueryRow(
		`SELECT id FROM facts WHERE entity = ? AND fact = ?`,
		f.Entity, f.Text,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to read back fact id: %w", err)
	}

	s.log.Debug("fact stored",
		zap.String("entity", f.Entity),
		zap.Float64("confidence", f.Confidence))
	return id, nil
}

// SearchFacts runs a ranked full-text search over fact text. Queries
// with no indexable terms or no matches return an empty slice, never
// an error.
func (s *Store) SearchFacts(query string) ([]Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchFactsLocked(query, s.searchLimit())
}

func (s *Store) searchFactsLocked(query string, limit int) ([]Fact, error) {
	match := ftsQuery(query)
	if match == "" {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT f.id, f.entity, f.fact, f.confidence, f.source, f.learned_at
		 FROM facts_fts
		 JOIN facts f ON f.id = facts_fts.rowid
		 WHERE facts_fts MATCH ?
		 ORDER BY rank
		 LIMIT ?`,
		match, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fact search failed: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var learnedAt string
		if err := rows.Scan(&f.ID, &f.Entity, &f.Text, &f.Confidence, &f.Source, &learnedAt); err != nil {
			continue
		}
		f.LearnedAt = parseTime(learnedAt)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// FactsForEntity returns all facts about one entity, highest
// confidence first.
func (s *Store) FactsForEntity(entity string) ([]Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.factsForEntityLocked(entity)
}

func (s *Store) factsForEntityLocked(entity string) ([]Fact, error) {
	rows, err := s.db.Query(
		`SELECT id, entity, fact, confidence, source, learned_at
		 FROM facts WHERE entity = ? COLLATE NOCASE
		 ORDER BY confidence DESC, learned_at DESC`,
		entity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts for %q: %w", entity, err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		var learnedAt string
		if err := rows.Scan(&f.ID, &f.Entity, &f.Text, &f.Confidence, &f.Source, &learnedAt); err != nil {
			continue
		}
		f.LearnedAt = parseTime(learnedAt)
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// ftsQuery converts free text into a safe FTS5 MATCH expression: each
// term quoted, OR-joined. Returns "" when nothing is indexable.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'.,!?:;()[]{}`)
		if f == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, ``)+`"`)
	}
	return strings.Join(terms, " OR ")
}
