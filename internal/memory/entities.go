package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned by point lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// StoreEntity upserts an entity keyed by (name, type). On conflict the
// attribute maps are merged, new values winning, and updated_at moves
// forward. Returns the stable entity id.
func (s *Store) StoreEntity(e Entity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Name == "" || e.Type == "" {
		return 0, fmt.Errorf("entity name and type are required")
	}
	if e.Attributes == nil {
		e.Attributes = map[string]any{}
	}

	now := fmtTime(time.Now())

	var existingID int64
	var existingAttrs string
	err := s.db.QueryRow(
		`SELECT id, attributes FROM entities WHERE name = ? AND entity_type = ?`,
		e.Name, e.Type,
	).Scan(&existingID, &existingAttrs)

	switch {
	case err == sql.ErrNoRows:
		attrs, merr := json.Marshal(e.Attributes)
		if merr != nil {
			return 0, fmt.Errorf("failed to encode attributes: %w", merr)
		}
		res, ierr := s.db.Exec(
			`INSERT INTO entities (name, entity_type, attributes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			e.Name, e.Type, string(attrs), now, now,
		)
		if ierr != nil {
			return 0, fmt.Errorf("failed to insert entity: %w", ierr)
		}
		id, _ := res.LastInsertId()
		s.log.Debug("entity created", zap.String("name", e.Name), zap.String("type", e.Type))
		return id, nil

	case err != nil:
		return 0, fmt.Errorf("failed to look up entity: %w", err)
	}

	merged := map[string]any{}
	_ = json.Unmarshal([]byte(existingAttrs), &merged)
	for k, v := range e.Attributes {
		merged[k] = v
	}
	attrs, merr := json.Marshal(merged)
	if merr != nil {
		return 0, fmt.Errorf("failed to encode attributes: %w", merr)
	}

	_, err = s.db.Exec(
		`UPDATE entities SET attributes = ?, updated_at = ? WHERE id = ?`,
		string(attrs), now, existingID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update entity: %w", err)
	}
	return existingID, nil
}

// GetEntity retrieves an entity by name across all types; the most
// recently updated match wins.
func (s *Store) GetEntity(name string) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntityLocked(name)
}

func (s *Store) getEntityLocked(name string) (*Entity, error) {
	row := s.db.QueryRow(
		`SELECT id, name, entity_type, attributes, created_at, updated_at
		 FROM entities WHERE name = ? COLLATE NOCASE
		 ORDER BY updated_at DESC LIMIT 1`,
		name,
	)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %q: %w", name, err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*Entity, error) {
	var e Entity
	var attrs, createdAt, updatedAt string
	if err := row.Scan(&e.ID, &e.Name, &e.Type, &attrs, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.Attributes = map[string]any{}
	_ = json.Unmarshal([]byte(attrs), &e.Attributes)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}
