package memory

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// StorePrediction records a falsifiable forecast and returns its id.
func (s *Store) StorePrediction(p Prediction) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Text == "" {
		return 0, fmt.Errorf("prediction text is required")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return 0, fmt.Errorf("prediction confidence must be in [0,1], got %f", p.Confidence)
	}
	if p.Domain == "" {
		p.Domain = "general"
	}

	var deadline any
	if p.Deadline != nil {
		deadline = fmtTime(*p.Deadline)
	}

	res, err := s.db.Exec(
		`INSERT INTO predictions (prediction, confidence, domain, deadline, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		p.Text, p.Confidence, p.Domain, deadline, fmtTime(time.Now()),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to store prediction: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// ResolvePrediction records ground truth for a prediction exactly
// once. Resolving an already-resolved or unknown prediction is an
// error.
func (s *Store) ResolvePrediction(id int64, outcome string, correct bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasCorrect := 0
	if correct {
		wasCorrect = 1
	}

	res, err := s.db.Exec(
		`UPDATE predictions SET outcome = ?, was_correct = ?, resolved_at = ?
		 WHERE id = ? AND resolved_at IS NULL`,
		outcome, wasCorrect, fmtTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve prediction %d: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("prediction %d: %w (or already resolved)", id, ErrNotFound)
	}

	s.log.Debug("prediction resolved", zap.Int64("id", id), zap.Bool("correct", correct))
	return nil
}

// OverduePredictions returns unresolved predictions whose deadline has
// passed, oldest first. The nightly cycle surfaces these so forecasts
// do not silently rot unresolved.
func (s *Store) OverduePredictions(now time.Time) ([]Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, prediction, confidence, domain, deadline, outcome, was_correct, created_at, resolved_at
		 FROM predictions
		 WHERE resolved_at IS NULL AND deadline IS NOT NULL AND deadline <= ?
		 ORDER BY deadline ASC`,
		fmtTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue predictions: %w", err)
	}
	defer rows.Close()

	var out []Prediction
	for rows.Next() {
		var p Prediction
		var deadline, resolvedAt, createdAt sql.NullString
		var wasCorrect sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Text, &p.Confidence, &p.Domain, &deadline,
			&p.Outcome, &wasCorrect, &createdAt, &resolvedAt); err != nil {
			continue
		}
		if deadline.Valid {
			t := parseTime(deadline.String)
			p.Deadline = &t
		}
		if wasCorrect.Valid {
			b := wasCorrect.Int64 != 0
			p.WasCorrect = &b
		}
		if createdAt.Valid {
			p.CreatedAt = parseTime(createdAt.String)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PredictionAccuracyFor summarizes resolved predictions within the
// lookback window, optionally filtered by domain. The calibration
// error is the gap between how often the agent was right and how
// confident it claimed to be.
func (s *Store) PredictionAccuracyFor(domain string, days int) (PredictionAccuracy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if days <= 0 {
		days = 30
	}
	cutoff := fmtTime(time.Now().AddDate(0, 0, -days))

	query := `SELECT COUNT(*), COALESCE(SUM(was_correct), 0), COALESCE(AVG(confidence), 0)
		 FROM predictions
		 WHERE resolved_at IS NOT NULL AND created_at >= ?`
	args := []any{cutoff}
	if domain != "" {
		query += ` AND domain = ?`
		args = append(args, domain)
	}

	var acc PredictionAccuracy
	var avgConfidence float64
	err := s.db.QueryRow(query, args...).Scan(&acc.Count, &acc.Correct, &avgConfidence)
	if err != nil {
		return PredictionAccuracy{}, fmt.Errorf("failed to compute prediction accuracy: %w", err)
	}

	acc.AvgConfidence = avgConfidence
	if acc.Count > 0 {
		acc.Accuracy = float64(acc.Correct) / float64(acc.Count)
		acc.CalibrationError = math.Abs(acc.Accuracy - acc.AvgConfidence)
	}
	return acc, nil
}
