package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/signalboard/signalboard/internal/types"
)

// InsertFeedback inserts a raw feedback item in its unprocessed state
func (s *Store) InsertFeedback(item *types.FeedbackItem) error {
	if item.ID == "" {
		return fmt.Errorf("feedback ID is required")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO feedback_items (id, source, author, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, item.ID, item.Source, item.Author, item.Text, item.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// InsertFeedbackIfAbsent inserts with OR IGNORE semantics, used by the seeder.
// Returns whether a row was actually inserted.
func (s *Store) InsertFeedbackIfAbsent(item *types.FeedbackItem) (bool, error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO feedback_items (id, source, author, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, item.ID, item.Source, item.Author, item.Text, item.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to insert feedback: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetFeedback retrieves one item by id. Returns (nil, nil) when missing.
func (s *Store) GetFeedback(id string) (*types.FeedbackItem, error) {
	row := s.db.QueryRow(`
		SELECT id, source, author, text, created_at, sentiment, urgency, value,
			summary, tags, cluster_id, duplicate_of
		FROM feedback_items WHERE id = ?
	`, id)
	item, err := scanFeedback(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

// ApplyClassification writes the processing results for one item: its
// classification fields plus the resolved cluster/duplicate references.
// This is the single transition from unprocessed to processed.
func (s *Store) ApplyClassification(id string, c types.Classification, clusterID, duplicateOf string) error {
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		tags = []byte("[]")
	}
	_, err = s.db.Exec(`
		UPDATE feedback_items
		SET sentiment = ?, urgency = ?, value = ?, summary = ?, tags = ?,
			cluster_id = ?, duplicate_of = ?
		WHERE id = ?
	`, string(c.Sentiment), string(c.Urgency), string(c.Value), c.Summary, string(tags),
		nullable(clusterID), nullable(duplicateOf), id)
	if err != nil {
		return fmt.Errorf("failed to apply classification: %w", err)
	}
	return nil
}

// RecentClusterSummaries returns the summaries of the most recent non-duplicate
// items in a cluster, newest first. Summarization input.
func (s *Store) RecentClusterSummaries(clusterID string, limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT summary FROM feedback_items
		WHERE cluster_id = ? AND summary IS NOT NULL AND duplicate_of IS NULL
		ORDER BY created_at DESC LIMIT ?
	`, clusterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []string
	for rows.Next() {
		var summary string
		if err := rows.Scan(&summary); err != nil {
			continue
		}
		if summary != "" {
			summaries = append(summaries, summary)
		}
	}
	return summaries, rows.Err()
}

// LatestClusterText returns the raw text of the most recent non-duplicate item
// in a cluster, or "" when the cluster has no remaining members.
func (s *Store) LatestClusterText(clusterID string) (string, error) {
	var text string
	err := s.db.QueryRow(`
		SELECT text FROM feedback_items
		WHERE cluster_id = ? AND duplicate_of IS NULL
		ORDER BY created_at DESC LIMIT 1
	`, clusterID).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return text, err
}

// ReassignCluster moves every feedback row from one cluster to another (merge job)
func (s *Store) ReassignCluster(fromID, toID string) error {
	_, err := s.db.Exec(`UPDATE feedback_items SET cluster_id = ? WHERE cluster_id = ?`, toID, fromID)
	if err != nil {
		return fmt.Errorf("failed to reassign cluster: %w", err)
	}
	return nil
}

// ClusterFeedback returns the most recent non-duplicate items in a cluster
func (s *Store) ClusterFeedback(clusterID string, limit int) ([]*types.FeedbackItem, error) {
	rows, err := s.db.Query(`
		SELECT id, source, author, text, created_at, sentiment, urgency, value,
			summary, tags, cluster_id, duplicate_of
		FROM feedback_items
		WHERE cluster_id = ? AND duplicate_of IS NULL
		ORDER BY created_at DESC LIMIT ?
	`, clusterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFeedbackRows(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row rowScanner) (*types.FeedbackItem, error) {
	var item types.FeedbackItem
	var author, sentiment, urgency, value, summary, tags, clusterID, duplicateOf sql.NullString
	err := row.Scan(&item.ID, &item.Source, &author, &item.Text, &item.CreatedAt,
		&sentiment, &urgency, &value, &summary, &tags, &clusterID, &duplicateOf)
	if err != nil {
		return nil, err
	}
	item.Author = author.String
	item.Sentiment = types.Sentiment(sentiment.String)
	item.Urgency = types.Urgency(urgency.String)
	item.Value = types.Value(value.String)
	item.Summary = summary.String
	item.ClusterID = clusterID.String
	item.DuplicateOf = duplicateOf.String
	if tags.Valid && tags.String != "" {
		json.Unmarshal([]byte(tags.String), &item.Tags)
	}
	return &item, nil
}

func scanFeedbackRows(rows *sql.Rows) ([]*types.FeedbackItem, error) {
	var items []*types.FeedbackItem
	for rows.Next() {
		item, err := scanFeedback(rows)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// nullable converts "" to NULL for reference columns
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
