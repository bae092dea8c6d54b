package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/signalboard/signalboard/internal/types"
)

// InsertCluster creates a new cluster row
func (s *Store) InsertCluster(c *types.Cluster) error {
	if c.ClusterID == "" {
		return fmt.Errorf("cluster ID is required")
	}
	if c.LabelStatus == "" {
		c.LabelStatus = types.LabelUnlabeled
	}
	_, err := s.db.Exec(`
		INSERT INTO clusters (cluster_id, title, theme_summary, count, last_seen_at, label_status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ClusterID, c.Title, c.ThemeSummary, c.Count, nullableTime(c.LastSeenAt), string(c.LabelStatus))
	if err != nil {
		return fmt.Errorf("failed to insert cluster: %w", err)
	}
	return nil
}

// GetCluster retrieves one cluster by id. Returns (nil, nil) when missing.
func (s *Store) GetCluster(id string) (*types.Cluster, error) {
	row := s.db.QueryRow(`
		SELECT cluster_id, title, theme_summary, count, last_seen_at, label_status
		FROM clusters WHERE cluster_id = ?
	`, id)
	c, err := scanCluster(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ClusterIDByTitle finds an existing cluster with the exact title (first match),
// the basis for keyword-derived cluster reuse. Returns "" when none exists.
func (s *Store) ClusterIDByTitle(title string) (string, error) {
	var id string
	err := s.db.QueryRow(`SELECT cluster_id FROM clusters WHERE title = ? LIMIT 1`, title).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// BumpCluster atomically increments the denormalized count and advances
// last_seen_at to the contributing item's creation time. The MAX clamp keeps
// last_seen_at from regressing when items are processed out of order.
func (s *Store) BumpCluster(id string, seenAt time.Time) error {
	_, err := s.db.Exec(`
		UPDATE clusters
		SET count = count + 1,
			last_seen_at = MAX(COALESCE(last_seen_at, ?), ?)
		WHERE cluster_id = ?
	`, seenAt.UTC(), seenAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to bump cluster: %w", err)
	}
	return nil
}

// ClusterCount re-reads the denormalized count (summarization trigger input)
func (s *Store) ClusterCount(id string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT count FROM clusters WHERE cluster_id = ?`, id).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return count, err
}

// SetClusterLabel overwrites the cluster's title/theme_summary and records how
// the label was produced
func (s *Store) SetClusterLabel(id string, label types.ClusterLabel, status types.LabelStatus) error {
	_, err := s.db.Exec(`
		UPDATE clusters SET title = ?, theme_summary = ?, label_status = ? WHERE cluster_id = ?
	`, label.Title, label.ThemeSummary, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set cluster label: %w", err)
	}
	return nil
}

// SetClusterLabelIfUnlabeled replaces the placeholder label only. Reports
// whether a replacement happened.
func (s *Store) SetClusterLabelIfUnlabeled(id string, label types.ClusterLabel) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE clusters SET title = ?, theme_summary = ?, label_status = ?
		WHERE cluster_id = ? AND label_status = ?
	`, label.Title, label.ThemeSummary, string(types.LabelKeyword), id, string(types.LabelUnlabeled))
	if err != nil {
		return false, fmt.Errorf("failed to replace placeholder label: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClustersByLastSeen returns all clusters, most recently seen first (merge/refresh order)
func (s *Store) ClustersByLastSeen() ([]*types.Cluster, error) {
	rows, err := s.db.Query(`
		SELECT cluster_id, title, theme_summary, count, last_seen_at, label_status
		FROM clusters ORDER BY last_seen_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClusterRows(rows)
}

// AllClusterIDs returns every cluster id (recount input)
func (s *Store) AllClusterIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT cluster_id FROM clusters`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteCluster removes a cluster row
func (s *Store) DeleteCluster(id string) error {
	_, err := s.db.Exec(`DELETE FROM clusters WHERE cluster_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete cluster: %w", err)
	}
	return nil
}

// ClusterGroundTruth recomputes count and last_seen_at from the feedback rows
// themselves: count of non-duplicate items referencing the cluster and the max
// of their creation timestamps. The recount authority reads this.
func (s *Store) ClusterGroundTruth(id string) (int, time.Time, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM feedback_items
		WHERE cluster_id = ? AND duplicate_of IS NULL
	`, id).Scan(&count)
	if err != nil {
		return 0, time.Time{}, err
	}
	if count == 0 {
		return 0, time.Time{}, nil
	}

	// MAX(created_at) is an expression with no declared type, so the driver
	// returns it as a raw string instead of a time.Time. Read the column
	// itself to keep the conversion.
	var lastSeen time.Time
	err = s.db.QueryRow(`
		SELECT created_at FROM feedback_items
		WHERE cluster_id = ? AND duplicate_of IS NULL
		ORDER BY created_at DESC LIMIT 1
	`, id).Scan(&lastSeen)
	if err != nil {
		return 0, time.Time{}, err
	}
	return count, lastSeen, nil
}

// SetClusterStats overwrites the denormalized aggregates (recount output)
func (s *Store) SetClusterStats(id string, count int, lastSeen time.Time) error {
	_, err := s.db.Exec(`
		UPDATE clusters SET count = ?, last_seen_at = ? WHERE cluster_id = ?
	`, count, nullableTime(lastSeen), id)
	if err != nil {
		return fmt.Errorf("failed to set cluster stats: %w", err)
	}
	return nil
}

func scanCluster(row rowScanner) (*types.Cluster, error) {
	var c types.Cluster
	var title, themeSummary, status sql.NullString
	var lastSeen sql.NullTime
	err := row.Scan(&c.ClusterID, &title, &themeSummary, &c.Count, &lastSeen, &status)
	if err != nil {
		return nil, err
	}
	c.Title = title.String
	c.ThemeSummary = themeSummary.String
	c.LastSeenAt = lastSeen.Time
	c.LabelStatus = types.LabelStatus(status.String)
	return &c, nil
}

func scanClusterRows(rows *sql.Rows) ([]*types.Cluster, error) {
	var clusters []*types.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			continue
		}
		clusters = append(clusters, c)
	}
	return clusters, rows.Err()
}

// nullableTime converts the zero time to NULL
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
