package store

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/signalboard/signalboard/internal/types"
)

// Dashboard and digest-window aggregate queries. All of them exclude
// duplicate-flagged rows: duplicates are audit dead weight, never counted.

// TopClusters returns clusters ordered by member count
func (s *Store) TopClusters(limit int) ([]*types.Cluster, error) {
	query, args, err := builder().
		Select("cluster_id", "title", "theme_summary", "count", "last_seen_at", "label_status").
		From("clusters").
		OrderBy("count DESC", "cluster_id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanClusterRows(rows)
}

// UrgentHighValue returns the most recent non-duplicate items classified
// urgency=high and value=high
func (s *Store) UrgentHighValue(limit int) ([]*types.FeedbackItem, error) {
	query, args, err := builder().
		Select("id", "source", "author", "text", "created_at", "sentiment", "urgency",
			"value", "summary", "tags", "cluster_id", "duplicate_of").
		From("feedback_items").
		Where(sq.Eq{"urgency": "high", "value": "high"}).
		Where("duplicate_of IS NULL").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFeedbackRows(rows)
}

// SentimentBreakdown counts classified non-duplicate items per sentiment,
// optionally scoped to one cluster. Absent sentiments report zero.
func (s *Store) SentimentBreakdown(clusterID string) (map[types.Sentiment]int, error) {
	q := builder().
		Select("sentiment", "COUNT(*)").
		From("feedback_items").
		Where("sentiment IS NOT NULL").
		Where("duplicate_of IS NULL").
		GroupBy("sentiment")
	if clusterID != "" {
		q = q.Where(sq.Eq{"cluster_id": clusterID})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breakdown := map[types.Sentiment]int{
		types.SentimentPositive: 0,
		types.SentimentNeutral:  0,
		types.SentimentNegative: 0,
	}
	for rows.Next() {
		var sentiment string
		var count int
		if err := rows.Scan(&sentiment, &count); err != nil {
			continue
		}
		key := types.Sentiment(sentiment)
		if _, ok := breakdown[key]; ok {
			breakdown[key] = count
		}
	}
	return breakdown, rows.Err()
}

// SourceBreakdown counts non-duplicate items per ingestion channel for one cluster
func (s *Store) SourceBreakdown(clusterID string) (map[string]int, error) {
	query, args, err := builder().
		Select("source", "COUNT(*)").
		From("feedback_items").
		Where(sq.Eq{"cluster_id": clusterID}).
		Where("duplicate_of IS NULL").
		GroupBy("source").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breakdown := make(map[string]int)
	for rows.Next() {
		var source string
		var count int
		if err := rows.Scan(&source, &count); err != nil {
			continue
		}
		breakdown[source] = count
	}
	return breakdown, rows.Err()
}

// WindowCluster is one cluster's in-window contribution to a digest
type WindowCluster struct {
	ClusterID string `json:"cluster_id"`
	Count     int    `json:"count"`
	Title     string `json:"title"`
}

// WindowTopClusters ranks clusters by non-duplicate item count inside the
// trailing window. Ties break on cluster_id so digests are reproducible.
func (s *Store) WindowTopClusters(since time.Time, limit int) ([]WindowCluster, error) {
	query, args, err := builder().
		Select("f.cluster_id", "COUNT(*) AS n", "COALESCE(c.title, '')").
		From("feedback_items f").
		LeftJoin("clusters c ON c.cluster_id = f.cluster_id").
		Where(sq.GtOrEq{"f.created_at": since.UTC()}).
		Where("f.duplicate_of IS NULL").
		Where("f.cluster_id IS NOT NULL").
		GroupBy("f.cluster_id").
		OrderBy("n DESC", "f.cluster_id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []WindowCluster
	for rows.Next() {
		var wc WindowCluster
		if err := rows.Scan(&wc.ClusterID, &wc.Count, &wc.Title); err != nil {
			continue
		}
		clusters = append(clusters, wc)
	}
	return clusters, rows.Err()
}

// WindowUrgentHighValue returns in-window urgent+high-value non-duplicate
// items, most recent first
func (s *Store) WindowUrgentHighValue(since time.Time, limit int) ([]*types.FeedbackItem, error) {
	query, args, err := builder().
		Select("id", "source", "author", "text", "created_at", "sentiment", "urgency",
			"value", "summary", "tags", "cluster_id", "duplicate_of").
		From("feedback_items").
		Where(sq.GtOrEq{"created_at": since.UTC()}).
		Where(sq.Eq{"urgency": "high", "value": "high"}).
		Where("duplicate_of IS NULL").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFeedbackRows(rows)
}
