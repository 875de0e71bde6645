package memory

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// StoreReflection persists a lesson extracted from a failure and
// returns its id. Reflections without a lesson are rejected; a
// reflection with no actionable rule has no value.
func (s *Store) StoreReflection(r Reflection) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(r.Lesson) == "" {
		return 0, fmt.Errorf("reflection lesson is required")
	}
	if r.Trigger == "" {
		r.Trigger = "unspecified"
	}

	res, err := s.db.Exec(
		`INSERT INTO reflections ("trigger", what_happened, why_failed, lesson, new_approach, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Trigger, r.WhatHappened, r.WhyFailed, r.Lesson, r.NewApproach, fmtTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to store reflection: %w", err)
	}
	id, _ := res.LastInsertId()

	s.log.Debug("reflection stored", zap.Int64("id", id), zap.String("trigger", r.Trigger))
	return id, nil
}

// RelevantReflections returns lessons applicable to the given context,
// ranked by text relevance. When the context matches nothing it falls
// back to the most recent lessons: a query-term mismatch must never
// starve the agent of its lessons. Every surfaced reflection is marked
// applied with an incremented counter.
func (s *Store) RelevantReflections(context string, limit int) ([]Reflection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 3
	}

	var refs []Reflection
	var err error

	if match := ftsQuery(context); match != "" {
		refs, err = s.queryReflections(
			`SELECT r.id, r."trigger", r.what_happened, r.why_failed, r.lesson, r.new_approach,
				r.applied, r.applied_count, r.created_at
			 FROM reflections_fts
			 JOIN reflections r ON r.id = reflections_fts.rowid
			 WHERE reflections_fts MATCH ?
			 ORDER BY rank
			 LIMIT ?`,
			match, limit,
		)
		if err != nil {
			return nil, err
		}
	}

	if len(refs) == 0 {
		refs, err = s.queryReflections(
			`SELECT id, "trigger", what_happened, why_failed, lesson, new_approach,
				applied, applied_count, created_at
			 FROM reflections
			 ORDER BY created_at DESC
			 LIMIT ?`,
			limit,
		)
		if err != nil {
			return nil, err
		}
	}

	for i := range refs {
		if err := s.markAppliedLocked(refs[i].ID); err != nil {
			return nil, err
		}
		refs[i].Applied = true
		refs[i].AppliedCount++
	}
	return refs, nil
}

// markAppliedLocked records that a reflection was surfaced into a
// response. The applied counter only ever increases.
func (s *Store) markAppliedLocked(id int64) error {
	_, err := s.db.Exec(
		`UPDATE reflections SET applied = 1, applied_count = applied_count + 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark reflection %d applied: %w", id, err)
	}
	return nil
}

// ListReflections returns reflections newest-first, for the
// consolidation pass.
func (s *Store) ListReflections(limit int) ([]Reflection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	return s.queryReflections(
		`SELECT id, "trigger", what_happened, why_failed, lesson, new_approach,
			applied, applied_count, created_at
		 FROM reflections
		 ORDER BY created_at DESC
		 LIMIT ?`,
		limit,
	)
}

// DeleteReflections removes reflections by id (consolidation merges
// and prunes). Missing ids are ignored.
func (s *Store) DeleteReflections(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM reflections WHERE id = ?`, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete reflection %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}

	s.log.Debug("reflections deleted", zap.Int("count", len(ids)))
	return nil
}

// StoreReflectionBatch persists a set of reflections atomically:
// either the whole batch lands or none of it does. Entries with empty
// lessons are skipped. Returns ids of the stored reflections.
func (s *Store) StoreReflectionBatch(batch []Reflection) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin reflection batch: %w", err)
	}

	now := fmtTime(time.Now())
	ids := make([]int64, 0, len(batch))
	for _, r := range batch {
		if strings.TrimSpace(r.Lesson) == "" {
			continue
		}
		if r.Trigger == "" {
			r.Trigger = "unspecified"
		}
		res, err := tx.Exec(
			`INSERT INTO reflections ("trigger", what_happened, why_failed, lesson, new_approach, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.Trigger, r.WhatHappened, r.WhyFailed, r.Lesson, r.NewApproach, now,
		)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to store reflection batch: %w", err)
		}
		id, _ := res.LastInsertId()
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reflection batch: %w", err)
	}
	return ids, nil
}

func (s *Store) queryReflections(query string, args ...any) ([]Reflection, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("reflection query failed: %w", err)
	}
	defer rows.Close()

	var refs []Reflection
	for rows.Next() {
		var r Reflection
		var applied int
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Trigger, &r.WhatHappened, &r.WhyFailed,
			&r.Lesson, &r.NewApproach, &applied, &r.AppliedCount, &createdAt); err != nil {
			continue
		}
		r.Applied = applied != 0
		r.CreatedAt = parseTime(createdAt)
		refs = append(refs, r)
	}
	return refs, rows.Err()
}
