// Package memory implements the durable knowledge store: entities,
// facts, reflections, predictions, interactions, suggestions and trust
// state in a single SQLite database, with FTS5 retrieval over fact and
// reflection text.
//
// SQLite is enough here. Full-text search plus targeted queries covers
// personal-agent recall without a vector database.
package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"aide/internal/config"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// sqliteTimeLayout is lexically ordered so stored timestamps compare
// correctly in SQL. All times are stored in UTC.
const sqliteTimeLayout = "2006-01-02 15:04:05.000"

func fmtTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);

-- Entities: people, projects, companies, concepts
CREATE TABLE IF NOT EXISTS entities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	attributes TEXT DEFAULT '{}',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(name, entity_type)
);

-- Facts: knowledge about entities
CREATE TABLE IF NOT EXISTS facts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity TEXT NOT NULL,
	fact TEXT NOT NULL,
	confidence REAL DEFAULT 0.8,
	source TEXT DEFAULT 'conversation',
	learned_at TEXT NOT NULL,
	UNIQUE(entity, fact)
);
CREATE INDEX IF NOT EXISTS idx_facts_entity ON facts(entity);

-- Reflections: lessons extracted from failures
CREATE TABLE IF NOT EXISTS reflections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	"trigger" TEXT NOT NULL,
	what_happened TEXT DEFAULT '',
	why_failed TEXT DEFAULT '',
	lesson TEXT NOT NULL,
	new_approach TEXT DEFAULT '',
	applied INTEGER DEFAULT 0,
	applied_count INTEGER DEFAULT 0,
	created_at TEXT NOT NULL
);

-- Predictions: forecasts for trust calibration
CREATE TABLE IF NOT EXISTS predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	prediction TEXT NOT NULL,
	confidence REAL NOT NULL,
	domain TEXT DEFAULT 'general',
	deadline TEXT,
	outcome TEXT DEFAULT '',
	was_correct INTEGER,
	created_at TEXT NOT NULL,
	resolved_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_predictions_domain ON predictions(domain);

-- Interactions: conversation history with feedback
CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_input TEXT NOT NULL,
	response TEXT NOT NULL,
	feedback TEXT DEFAULT '',
	session_id TEXT DEFAULT '',
	metadata TEXT DEFAULT '{}',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at);
CREATE INDEX IF NOT EXISTS idx_interactions_feedback ON interactions(feedback);

-- Suggestions: proactive nudges with lifecycle state
CREATE TABLE IF NOT EXISTS suggestions (
	id TEXT PRIMARY KEY,
	message TEXT NOT NULL,
	category TEXT DEFAULT '',
	confidence REAL NOT NULL,
	action TEXT DEFAULT '',
	domain TEXT NOT NULL,
	status TEXT DEFAULT 'pending',
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_suggestions_status ON suggestions(status);

-- Trust: earned autonomy per domain
CREATE TABLE IF NOT EXISTS trust (
	domain TEXT PRIMARY KEY,
	level INTEGER DEFAULT 0,
	successes INTEGER DEFAULT 0,
	failures INTEGER DEFAULT 0,
	consecutive_successes INTEGER DEFAULT 0,
	consecutive_failures INTEGER DEFAULT 0,
	last_success_at TEXT,
	last_failure_at TEXT,
	updated_at TEXT NOT NULL
);

-- Settings: small key-value state (rate limits, cycle bookkeeping)
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

-- Full-text index over fact text, kept in sync by triggers
CREATE VIRTUAL TABLE IF NOT EXISTS facts_fts USING fts5(
	entity, fact, content='facts', content_rowid='id'
);
CREATE TRIGGER IF NOT EXISTS facts_ai AFTER INSERT ON facts BEGIN
	INSERT INTO facts_fts(rowid, entity, fact) VALUES (new.id, new.entity, new.fact);
END;
CREATE TRIGGER IF NOT EXISTS facts_ad AFTER DELETE ON facts BEGIN
	INSERT INTO facts_fts(facts_fts, rowid, entity, fact) VALUES ('delete', old.id, old.entity, old.fact);
END;
CREATE TRIGGER IF NOT EXISTS facts_au AFTER UPDATE ON facts BEGIN
	INSERT INTO facts_fts(facts_fts, rowid, entity, fact) VALUES ('delete', old.id, old.entity, old.fact);
	INSERT INTO facts_fts(rowid, entity, fact) VALUES (new.id, new.entity, new.fact);
END;

-- Full-text index over reflection text
CREATE VIRTUAL TABLE IF NOT EXISTS reflections_fts USING fts5(
	"trigger", lesson, new_approach, content='reflections', content_rowid='id'
);
CREATE TRIGGER IF NOT EXISTS reflections_ai AFTER INSERT ON reflections BEGIN
	INSERT INTO reflections_fts(rowid, "trigger", lesson, new_approach)
	VALUES (new.id, new."trigger", new.lesson, new.new_approach);
END;
CREATE TRIGGER IF NOT EXISTS reflections_ad AFTER DELETE ON reflections BEGIN
	INSERT INTO reflections_fts(reflections_fts, rowid, "trigger", lesson, new_approach)
	VALUES ('delete', old.id, old."trigger", old.lesson, old.new_approach);
END;
CREATE TRIGGER IF NOT EXISTS reflections_au AFTER UPDATE ON reflections BEGIN
	INSERT INTO reflections_fts(reflections_fts, rowid, "trigger", lesson, new_approach)
	VALUES ('delete', old.id, old."trigger", old.lesson, old.new_approach);
	INSERT INTO reflections_fts(rowid, "trigger", lesson, new_approach)
	VALUES (new.id, new."trigger", new.lesson, new.new_approach);
END;
`

// Store is the single durable knowledge store. All mutation paths are
// guarded by mu since multiple conversations share one process.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	log *zap.Logger
	cfg config.MemoryConfig
}

// Open initializes the SQLite database at cfg.Path.
func Open(cfg config.MemoryConfig, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	busyTimeout := cfg.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", cfg.Path, busyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, log: log.Named("memory"), cfg: cfg}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version < schemaVersion {
		_, err = s.db.Exec(
			`INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			schemaVersion, fmtTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}

	s.log.Debug("knowledge store ready",
		zap.String("path", s.cfg.Path),
		zap.Int("schema_version", schemaVersion))
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// searchLimit returns the configured FTS result cap.
func (s *Store) searchLimit() int {
	if s.cfg.SearchLimit > 0 {
		return s.cfg.SearchLimit
	}
	return 10
}
