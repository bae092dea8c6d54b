// Package store persists feedback items, clusters, and digests in SQLite.
//
// Cluster count and last_seen_at are denormalized and maintained incrementally
// by the lifecycle manager; they drift under concurrent writers and partial
// failures, and the recount job is the sole authority that repairs them.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database connection
type Store struct {
	db *sql.DB
}

// Open opens or creates the signalboard database under dataDir
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "signalboard.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle so the vector index can share the database file
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate runs database migrations
func (s *Store) migrate() error {
	schema := `
	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Raw feedback plus processing results. Classification columns stay NULL
	-- until the item's single background processing pass completes.
	CREATE TABLE IF NOT EXISTS feedback_items (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		author TEXT,
		text TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		sentiment TEXT,
		urgency TEXT,
		value TEXT,
		summary TEXT,
		tags TEXT,
		cluster_id TEXT,
		duplicate_of TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_created ON feedback_items(created_at);
	CREATE INDEX IF NOT EXISTS idx_feedback_cluster ON feedback_items(cluster_id);
	CREATE INDEX IF NOT EXISTS idx_feedback_duplicate ON feedback_items(duplicate_of);
	CREATE INDEX IF NOT EXISTS idx_feedback_urgency_value ON feedback_items(urgency, value);

	CREATE TABLE IF NOT EXISTS clusters (
		cluster_id TEXT PRIMARY KEY,
		title TEXT,
		theme_summary TEXT,
		count INTEGER DEFAULT 0,
		last_seen_at DATETIME,
		label_status TEXT NOT NULL DEFAULT 'unlabeled'
	);

	CREATE INDEX IF NOT EXISTS idx_clusters_count ON clusters(count);
	CREATE INDEX IF NOT EXISTS idx_clusters_last_seen ON clusters(last_seen_at);
	CREATE INDEX IF NOT EXISTS idx_clusters_title ON clusters(title);

	-- Append-only: one row per generation run, multiple rows per date allowed
	CREATE TABLE IF NOT EXISTS digests (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		content_md TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_digests_date ON digests(date);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	return s.runMigrations()
}

// runMigrations applies incremental schema changes
func (s *Store) runMigrations() error {
	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		version = 1
	}

	// Migration v2: partial index for the urgent+high-value digest query
	if version < 2 {
		s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_feedback_urgent_window
			ON feedback_items(created_at) WHERE urgency = 'high' AND value = 'high' AND duplicate_of IS NULL`)
		s.db.Exec("INSERT INTO schema_version (version) VALUES (2)")
	}

	return nil
}

// builder returns a squirrel statement builder bound to the store's placeholder format
func builder() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Stats returns row counts per table
func (s *Store) Stats() (map[string]int, error) {
	stats := make(map[string]int)
	for _, table := range []string{"feedback_items", "clusters", "digests"} {
		var count int
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return nil, err
		}
		stats[table] = count
	}
	return stats, nil
}
